package browser

// Defaults applied when the configuration leaves the corresponding
// policy field empty.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultLocale         = "en-US"
	DefaultTimezoneID     = "America/New_York"
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// stealthScript runs before any page script and blanks the properties
// sites probe to spot automated browsers.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
`

// SessionPolicy fixes the fingerprint of a browser session: launch
// flags, user agent, locale, timezone and viewport. The launcher copies
// the value when it starts, so mutating a policy never affects a
// session that is already running.
type SessionPolicy struct {
	Headless       bool
	UserAgent      string
	Locale         string
	TimezoneID     string
	ViewportWidth  int
	ViewportHeight int
	ExtraArgs      []string
}

// DefaultPolicy is the policy used when nothing is configured.
func DefaultPolicy() SessionPolicy {
	return SessionPolicy{
		Headless:       true,
		UserAgent:      DefaultUserAgent,
		Locale:         DefaultLocale,
		TimezoneID:     DefaultTimezoneID,
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
	}
}

func (p SessionPolicy) withDefaults() SessionPolicy {
	if p.UserAgent == "" {
		p.UserAgent = DefaultUserAgent
	}
	if p.Locale == "" {
		p.Locale = DefaultLocale
	}
	if p.TimezoneID == "" {
		p.TimezoneID = DefaultTimezoneID
	}
	if p.ViewportWidth <= 0 {
		p.ViewportWidth = DefaultViewportWidth
	}
	if p.ViewportHeight <= 0 {
		p.ViewportHeight = DefaultViewportHeight
	}
	return p
}

// launchArgs returns the Chromium command line flags for this policy.
func (p SessionPolicy) launchArgs() []string {
	args := []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--disable-gpu",
		"--disable-extensions",
		"--disable-infobars",
		"--no-first-run",
	}
	return append(args, p.ExtraArgs...)
}
