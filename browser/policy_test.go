package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.Headless)
	assert.Equal(t, DefaultUserAgent, p.UserAgent)
	assert.Equal(t, DefaultLocale, p.Locale)
	assert.Equal(t, DefaultTimezoneID, p.TimezoneID)
	assert.Equal(t, DefaultViewportWidth, p.ViewportWidth)
	assert.Equal(t, DefaultViewportHeight, p.ViewportHeight)
}

func TestSessionPolicy_WithDefaults(t *testing.T) {
	t.Run("fills empty fields", func(t *testing.T) {
		p := SessionPolicy{Headless: true}.withDefaults()
		assert.Equal(t, DefaultUserAgent, p.UserAgent)
		assert.Equal(t, DefaultLocale, p.Locale)
		assert.Equal(t, DefaultTimezoneID, p.TimezoneID)
		assert.Equal(t, DefaultViewportWidth, p.ViewportWidth)
		assert.Equal(t, DefaultViewportHeight, p.ViewportHeight)
	})

	t.Run("keeps configured values", func(t *testing.T) {
		p := SessionPolicy{
			UserAgent:      "custom-agent",
			Locale:         "de-DE",
			TimezoneID:     "Europe/Berlin",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		}.withDefaults()
		assert.Equal(t, "custom-agent", p.UserAgent)
		assert.Equal(t, "de-DE", p.Locale)
		assert.Equal(t, "Europe/Berlin", p.TimezoneID)
		assert.Equal(t, 1920, p.ViewportWidth)
		assert.Equal(t, 1080, p.ViewportHeight)
	})
}

func TestSessionPolicy_LaunchArgs(t *testing.T) {
	p := DefaultPolicy()
	args := p.launchArgs()
	assert.Contains(t, args, "--disable-blink-features=AutomationControlled")
	assert.Contains(t, args, "--no-sandbox")

	p.ExtraArgs = []string{"--proxy-server=localhost:8080"}
	args = p.launchArgs()
	assert.Equal(t, "--proxy-server=localhost:8080", args[len(args)-1])
}

func TestStealthScript(t *testing.T) {
	assert.True(t, strings.Contains(stealthScript, "navigator, 'webdriver'"))
	assert.True(t, strings.Contains(stealthScript, "window.chrome"))
}
