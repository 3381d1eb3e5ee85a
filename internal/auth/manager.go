package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// Manager handles Facebook authentication and cookie transfer between
// authenticated and de-authenticated browser states.
type Manager struct {
	cookieStore *CookieStore
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore) *Manager {
	return &Manager{cookieStore: cookieStore}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// SelfID returns the numeric account id of the stored session, or 0.
func (m *Manager) SelfID() int64 {
	return m.cookieStore.SelfID()
}

// Login opens a browser window for the user to log in to Facebook.
// Returns extracted cookies on successful login.
func (m *Manager) Login(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false), // Visible browser
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("start-maximized", true),
		// Prevent navigator.webdriver = true
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	err := chromedp.Run(browserCtx,
		chromedp.Navigate("https://m.facebook.com/login"),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	if err := m.waitForLogin(browserCtx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cookies, err := Capture(browserCtx)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	return nil
}

// waitForLogin polls until the user has successfully logged in
func (m *Manager) waitForLogin(ctx context.Context) error {
	timeout := time.After(5 * time.Minute) // Give user 5 minutes to log in
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("login timeout exceeded")
		case <-ticker.C:
			var url string
			err := chromedp.Run(ctx,
				chromedp.Location(&url),
			)
			if err != nil {
				continue
			}

			// Off the login page and holding a c_user cookie means we're in
			if strings.Contains(url, "/login") || strings.Contains(url, "/checkpoint") {
				continue
			}
			cookies, err := Capture(ctx)
			if err != nil {
				continue
			}
			for _, c := range cookies {
				if c.Name == "c_user" && c.Value != "" {
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}

// GetCookies returns the stored cookies for use in extraction sessions
func (m *Manager) GetCookies() ([]*network.Cookie, error) {
	return m.cookieStore.GetFacebookCookies()
}

// Capture gets all cookies from the live browser context
func Capture(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

// Inject sets cookies in the live browser context
func Inject(ctx context.Context, cookies []*network.Cookie) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)

				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

// Stash captures the live session's cookies and then clears them from the
// browser, de-authenticating the session without losing the ability to log
// back in. Restore with the returned cookies to re-authenticate.
func (m *Manager) Stash(ctx context.Context) ([]*network.Cookie, error) {
	cookies, err := Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture cookies: %w", err)
	}

	err = chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.ClearBrowserCookies().Do(ctx)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to clear browser cookies: %w", err)
	}

	return cookies, nil
}

// Restore re-injects previously stashed cookies into the live session
func (m *Manager) Restore(ctx context.Context, cookies []*network.Cookie) error {
	return Inject(ctx, cookies)
}
