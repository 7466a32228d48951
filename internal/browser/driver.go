// Package browser drives a real Chromium page through Playwright: it runs the
// QR-code login handshake and exposes the authenticated page to the
// redemption machine.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	playwright "github.com/playwright-community/playwright-go"

	"github.com/duoink-tools/redeem/internal/redeem"
)

// ErrLoginTimeout is returned when nobody scanned the QR code in time.
var ErrLoginTimeout = errors.New("login not completed before timeout")

// Login page selectors.
const (
	selLoginButton = ".nav-bar-login"
	selLoginModal  = ".modal-login"
	selQRCode      = "img[alt='login qr code']"
	selNickname    = "xpath=//div[contains(@class, 'nickname')]"
)

// Options configures the browser and the login handshake.
type Options struct {
	BaseURL         string
	DashboardURL    string
	Headless        bool
	InstallBrowsers bool
	// AuthTimeout bounds the wait for the user to scan the QR code.
	AuthTimeout time.Duration
	// ActionTimeout bounds navigation and login page interactions.
	ActionTimeout time.Duration
	// Settle is the pause after opening the dashboard.
	Settle        time.Duration
	ScreenshotDir string
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = "https://duoink.co/"
	}
	if o.DashboardURL == "" {
		o.DashboardURL = "https://duoink.co/pte/"
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 60 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 10 * time.Second
	}
	if o.ScreenshotDir == "" {
		o.ScreenshotDir = "screenshots"
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Driver opens authenticated sessions.
type Driver struct {
	opts Options
}

// NewDriver returns a Driver for opts.
func NewDriver(opts Options) *Driver {
	return &Driver{opts: opts.withDefaults()}
}

// Open starts Chromium, waits for the QR-code login to complete and lands
// on the dashboard. The caller owns the returned session and must Close it.
func (d *Driver) Open(ctx context.Context) (*Session, error) {
	o := d.opts
	log := o.Logger

	if o.InstallBrowsers {
		log.Debug("ensuring playwright browsers are installed")
		if err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{"chromium"},
		}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	s := &Session{pw: pw, shotDir: o.ScreenshotDir, timeout: o.ActionTimeout, log: log}

	s.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(o.Headless),
		Args:     []string{"--start-maximized", "--disable-notifications"},
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("launch chromium (headless=%v): %w", o.Headless, err)
	}

	s.bctx, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		NoViewport: playwright.Bool(true),
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	s.page, err = s.bctx.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.page.SetDefaultTimeout(millis(o.ActionTimeout))

	if err := d.login(ctx, s); err != nil {
		_ = s.Snapshot(context.WithoutCancel(ctx), "login_failed")
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (d *Driver) login(ctx context.Context, s *Session) error {
	o := d.opts
	log := o.Logger
	page := s.page

	if _, err := page.Goto(o.BaseURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", o.BaseURL, err)
	}
	log.Info("opened site", "url", o.BaseURL)

	if err := page.Locator(selLoginButton).First().Click(); err != nil {
		return fmt.Errorf("click login button: %w", err)
	}
	for _, sel := range []string{selLoginModal, selQRCode} {
		if err := page.Locator(sel).First().WaitFor(playwright.LocatorWaitForOptions{
			State: playwright.WaitForSelectorStateVisible,
		}); err != nil {
			return fmt.Errorf("wait for %s: %w", sel, err)
		}
	}
	log.Info("scan the QR code to log in", "timeout", o.AuthTimeout)

	nickname, err := waitForLogin(ctx, page.Locator(selNickname).First(), o.AuthTimeout)
	if err != nil {
		return err
	}
	log.Info("logged in", "nickname", nickname)

	if _, err := page.Goto(o.DashboardURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", o.DashboardURL, err)
	}
	log.Info("opened dashboard", "url", o.DashboardURL)

	return redeem.Sleep(ctx, o.Settle)
}

// waitForLogin polls for the nickname element so that a cancelled context
// ends the wait promptly.
func waitForLogin(ctx context.Context, nickname playwright.Locator, timeout time.Duration) (string, error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op := func() error {
		n, err := nickname.Count()
		if err != nil {
			return backoff.Permanent(err)
		}
		if n == 0 {
			return ErrLoginTimeout
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(500*time.Millisecond), wctx))
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, ErrLoginTimeout), errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("%w (%s)", ErrLoginTimeout, timeout)
	default:
		return "", fmt.Errorf("wait for login: %w", err)
	}

	// The nickname is only logged.
	text, _ := nickname.InnerText()
	return strings.TrimSpace(text), nil
}
