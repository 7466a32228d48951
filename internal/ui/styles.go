// Package ui provides terminal styling for redeem CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/duoink-tools/redeem/internal/types"
)

// Ayu theme color palette
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Status icons
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

const SeparatorLight = "──────────────────────────────────────────"

// colorEnabled is decided once from the environment and the terminal.
var colorEnabled = ShouldUseColor()

// SetColor overrides color detection (e.g. --json or tests).
func SetColor(on bool) { colorEnabled = on }

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string { return render(PassStyle, s) }

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string { return render(WarnStyle, s) }

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string { return render(FailStyle, s) }

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string { return render(MutedStyle, s) }

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string { return render(AccentStyle, s) }

// RenderCategory renders a section header in uppercase with accent color
func RenderCategory(s string) string { return render(CategoryStyle, strings.ToUpper(s)) }

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string { return render(MutedStyle, SeparatorLight) }

// Tone is the visual severity of an outcome.
type Tone int

const (
	TonePass Tone = iota
	ToneSkip
	ToneWarn
	ToneFail
)

// ToneOf maps an outcome kind to how it is shown. Codes the ledger consumed
// are a pass, rejected codes are skipped, codes left pending warn.
func ToneOf(k types.Kind) Tone {
	switch k {
	case types.KindSuccess, types.KindAlreadyInvited:
		return TonePass
	case types.KindInvalidCode:
		return ToneSkip
	case types.KindDailyLimitReached, types.KindTransientError:
		return ToneFail
	default:
		return ToneWarn
	}
}

func (t Tone) icon() string {
	switch t {
	case TonePass:
		return render(PassStyle, IconPass)
	case ToneSkip:
		return render(MutedStyle, IconSkip)
	case ToneFail:
		return render(FailStyle, IconFail)
	default:
		return render(WarnStyle, IconWarn)
	}
}

func (t Tone) style() lipgloss.Style {
	switch t {
	case TonePass:
		return PassStyle
	case ToneSkip:
		return MutedStyle
	case ToneFail:
		return FailStyle
	default:
		return WarnStyle
	}
}

// RenderKind renders an outcome label in its tone color.
func RenderKind(k types.Kind) string {
	return render(ToneOf(k).style(), string(k))
}

// RenderOutcome renders one progress line: icon, index, code, kind and the
// page's message when there is one.
func RenderOutcome(index, total int, code string, o types.Outcome) string {
	tone := ToneOf(o.Kind())
	line := fmt.Sprintf("%s %s %s %s",
		tone.icon(),
		RenderMuted(fmt.Sprintf("[%d/%d]", index, total)),
		code,
		RenderKind(o.Kind()),
	)
	if d := strings.TrimSpace(o.Detail()); d != "" {
		line += " " + RenderMuted(Clip(d, 80))
	}
	return line
}

// Clip shortens s to at most max runes, marking the cut with "...".
func Clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	switch {
	case len(r) <= max:
		return s
	case max <= 3:
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
