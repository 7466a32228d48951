package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	playwright "github.com/playwright-community/playwright-go"

	"github.com/duoink-tools/redeem/internal/redeem"
)

// Session is an authenticated page. It implements redeem.Page and is not
// safe for concurrent use.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	shotDir string
	timeout time.Duration
	log     *slog.Logger
}

var _ redeem.Page = (*Session)(nil)

func (s *Session) Find(ctx context.Context, selector string, state redeem.State, timeout time.Duration) (redeem.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := s.page.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   waitState(state),
		Timeout: playwright.Float(budget(ctx, timeout)),
	})
	if err != nil {
		return nil, driverErr(ctx, err)
	}
	return &element{loc: loc, timeout: s.timeout}, nil
}

func (s *Session) FindAll(ctx context.Context, selector string) ([]redeem.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locs, err := s.page.Locator(selector).All()
	if err != nil {
		return nil, driverErr(ctx, err)
	}
	out := make([]redeem.Element, 0, len(locs))
	for _, l := range locs {
		out = append(out, &element{loc: l, timeout: s.timeout})
	}
	return out, nil
}

func (s *Session) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return driverErr(ctx, s.page.Keyboard().Press(key))
}

// Snapshot saves a full-page screenshot as <dir>/<name>.png.
func (s *Session) Snapshot(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.page == nil {
		return errors.New("no page to capture")
	}
	if err := os.MkdirAll(s.shotDir, 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	path := screenshotPath(s.shotDir, name)
	if _, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		return fmt.Errorf("screenshot %s: %w", path, err)
	}
	s.log.Info("saved screenshot", "path", path)
	return nil
}

// Close shuts down page, context, browser and driver; safe to call
// multiple times.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
		s.page = nil
	}
	if s.bctx != nil {
		errs = append(errs, s.bctx.Close())
		s.bctx = nil
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
		s.browser = nil
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
		s.pw = nil
	}
	return errors.Join(errs...)
}

type element struct {
	loc     playwright.Locator
	timeout time.Duration
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return driverErr(ctx, e.loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(budget(ctx, e.timeout)),
	}))
}

func (e *element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return driverErr(ctx, e.loc.Clear(playwright.LocatorClearOptions{
		Timeout: playwright.Float(budget(ctx, e.timeout)),
	}))
}

func (e *element) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return driverErr(ctx, e.loc.Press(key, playwright.LocatorPressOptions{
		Timeout: playwright.Float(budget(ctx, e.timeout)),
	}))
}

// Type enters text one key at a time so the page's input handlers fire.
func (e *element) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return driverErr(ctx, e.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   playwright.Float(30),
		Timeout: playwright.Float(budget(ctx, e.timeout)),
	}))
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.loc.InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(budget(ctx, e.timeout)),
	})
	if err != nil {
		return "", driverErr(ctx, err)
	}
	return strings.TrimSpace(text), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.loc.IsVisible()
	if err != nil {
		return false, driverErr(ctx, err)
	}
	return ok, nil
}

func waitState(s redeem.State) *playwright.WaitForSelectorState {
	if s == redeem.Visible {
		return playwright.WaitForSelectorStateVisible
	}
	return playwright.WaitForSelectorStateAttached
}

// budget returns d in milliseconds, capped by the context deadline.
// Playwright treats 0 as "no timeout", so the result is at least 1ms.
func budget(ctx context.Context, d time.Duration) float64 {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	return math.Max(1, millis(d))
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

// driverErr maps a Playwright timeout to redeem.ErrNotFound and prefers the
// context error once the context is done.
func driverErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return redeem.ErrNotFound
	}
	return err
}

func screenshotPath(dir, name string) string {
	return filepath.Join(dir, name+".png")
}
