package plan

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyURL is returned when a request has no target URL.
	ErrEmptyURL = errors.New("request url is required")

	// ErrInvalidTestType is returned when the test type is not recognized.
	ErrInvalidTestType = errors.New("invalid test type")
)

// TestType categorizes the intent of a test request. It is advisory
// metadata produced by the planner collaborator; the engine only validates
// that it is one of the recognized values.
type TestType string

const (
	TestTypeLogin              TestType = "login"
	TestTypeSearch             TestType = "search"
	TestTypeNavigation         TestType = "navigation"
	TestTypeFormSubmission     TestType = "form_submission"
	TestTypeAddToCart          TestType = "add_to_cart"
	TestTypeCheckout           TestType = "checkout"
	TestTypeGeneral            TestType = "general"
	TestTypeElementInteraction TestType = "element_interaction"
)

// IsValid checks if the test type is one of the recognized values.
func (t TestType) IsValid() bool {
	switch t {
	case TestTypeLogin, TestTypeSearch, TestTypeNavigation, TestTypeFormSubmission,
		TestTypeAddToCart, TestTypeCheckout, TestTypeGeneral, TestTypeElementInteraction:
		return true
	default:
		return false
	}
}

// Action is the kind of browser operation a step performs.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionType       Action = "type"
	ActionVerify     Action = "verify"
	ActionWait       Action = "wait"
	ActionScreenshot Action = "screenshot"
	ActionScroll     Action = "scroll"
)

// IsValid checks if the action is one of the recognized kinds.
// An unrecognized action is a hard step failure at execution time,
// not a plan validation error: the engine must tolerate partial plans.
func (a Action) IsValid() bool {
	switch a {
	case ActionNavigate, ActionClick, ActionType, ActionVerify,
		ActionWait, ActionScreenshot, ActionScroll:
		return true
	default:
		return false
	}
}

// Request describes what to test. It is produced by the planner
// collaborator and is immutable once handed to the engine.
type Request struct {
	URL        string            `json:"url"`
	TestIntent string            `json:"test_intent"`
	Type       TestType          `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Validate checks the request fields the engine depends on.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrEmptyURL
	}
	if r.Type != "" && !r.Type.IsValid() {
		return ErrInvalidTestType
	}
	return nil
}

// Plan is an ordered sequence of steps to run against a page. The
// Selectors map is advisory planner output; the engine resolves targets
// through each step's own Target field.
type Plan struct {
	Description string            `json:"description"`
	Steps       []Step            `json:"steps"`
	Selectors   map[string]string `json:"selectors,omitempty"`
}

// Step is a single loosely-specified operation. Target may hold
// comma-separated selector alternatives tried in order, or a literal
// (a URL for navigate, a label for screenshot). Value may carry
// placeholder tokens substituted from request parameters.
type Step struct {
	Action      Action `json:"action"`
	Target      string `json:"target,omitempty"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
	IsOptional  bool   `json:"is_optional,omitempty"`
}

// NormalizeURL prefixes a scheme-less URL with https. The planner
// frequently emits bare hostnames.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}
