package browser

import (
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
	"github.com/probelab/uitester/logger"
)

// Install downloads the Chromium build playwright drives. It is safe
// to call on every startup; the download is skipped when the browser
// is already present.
func Install() error {
	return playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	})
}

// Launcher owns the playwright driver process and launches isolated
// browser sessions from it. A single launcher serves the whole process;
// every job gets its own browser, context and page.
type Launcher struct {
	pw     *playwright.Playwright
	policy SessionPolicy
	logger logger.Logger
}

// NewLauncher starts the playwright driver. Call Install first on
// fresh hosts.
func NewLauncher(policy SessionPolicy, log logger.Logger) (*Launcher, error) {
	pw, err := playwright.Run(&playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return &Launcher{pw: pw, policy: policy.withDefaults(), logger: log}, nil
}

// Launch starts a fresh browser, context and page under the launcher's
// policy. A non-empty videoDir enables video recording into that
// directory; playwright names the file, so callers relocate it after
// the page closes.
func (l *Launcher) Launch(videoDir string) (*Session, error) {
	policy := l.policy

	browser, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(policy.Headless),
		Args:     policy.launchArgs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  policy.ViewportWidth,
			Height: policy.ViewportHeight,
		},
		UserAgent:  playwright.String(policy.UserAgent),
		Locale:     playwright.String(policy.Locale),
		TimezoneId: playwright.String(policy.TimezoneID),
	}
	if videoDir != "" {
		contextOpts.RecordVideo = &playwright.RecordVideo{
			Dir: videoDir,
			Size: &playwright.Size{
				Width:  policy.ViewportWidth,
				Height: policy.ViewportHeight,
			},
		}
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	if err := browserCtx.AddInitScript(playwright.Script{
		Content: playwright.String(stealthScript),
	}); err != nil {
		browserCtx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to add init script: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &Session{
		browser: browser,
		context: browserCtx,
		page:    &Page{pw: page},
	}, nil
}

// Stop shuts the playwright driver down.
func (l *Launcher) Stop() error {
	return l.pw.Stop()
}

// Session is one isolated browser instance serving a single job.
type Session struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    *Page
}

// Page returns the session's single page.
func (s *Session) Page() *Page {
	return s.page
}

// StartTracing begins trace recording with screenshots, snapshots and
// sources enabled.
func (s *Session) StartTracing() error {
	return s.context.Tracing().Start(playwright.TracingStartOptions{
		Screenshots: playwright.Bool(true),
		Snapshots:   playwright.Bool(true),
		Sources:     playwright.Bool(true),
	})
}

// StopTracing stops trace recording and writes the archive to path.
func (s *Session) StopTracing(path string) error {
	return s.context.Tracing().Stop(path)
}

// ClosePage closes only the page, which flushes any video recording
// to the context's video directory.
func (s *Session) ClosePage() error {
	return s.page.pw.Close()
}

// Close tears the whole session down. Errors are ignored so cleanup
// always runs to completion.
func (s *Session) Close() {
	_ = s.page.pw.Close()
	_ = s.context.Close()
	_ = s.browser.Close()
}
