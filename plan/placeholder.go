package plan

import "strings"

// Placeholder defaults used when the request carries no matching
// parameter. Targets are third-party pages we do not control, so typed
// values must always be plausible form input.
const (
	DefaultEmail    = "test@example.com"
	DefaultPassword = "Password123!"
	DefaultUsername = "testuser"
	DefaultSearch   = "laptop"
)

// placeholderDefaults maps placeholder names to their fallback values.
var placeholderDefaults = map[string]string{
	"email":    DefaultEmail,
	"password": DefaultPassword,
	"username": DefaultUsername,
	"search":   DefaultSearch,
}

// SubstitutePlaceholders replaces named tokens of the form {name} in a
// step value with the matching request parameter, falling back to a fixed
// default when the parameter is absent. Unknown tokens are left as-is.
func SubstitutePlaceholders(value string, params map[string]string) string {
	for name, fallback := range placeholderDefaults {
		token := "{" + name + "}"
		if !strings.Contains(value, token) {
			continue
		}
		replacement := fallback
		if v, ok := params[name]; ok && v != "" {
			replacement = v
		}
		value = strings.ReplaceAll(value, token, replacement)
	}
	return value
}

// UsesPlaceholder reports whether the value contains the named token.
func UsesPlaceholder(value, name string) bool {
	return strings.Contains(value, "{"+name+"}")
}
