package selector

import (
	"fmt"
	"strings"
)

// stableAttrs are data attributes a site author is likely to keep stable
// across deployments: test hooks and the submit/continue/form-field markers
// job-application platforms attach to their controls.
var stableAttrs = []string{
	"data-testid",
	"data-automation-id",
	"data-qa",
	"data-field",
	"data-action",
}

// ephemeralMarkers flag generated class names that churn between sessions
var ephemeralMarkers = []string{"random", "generated"}

// strategy derives a locator from an element. Strategies are tried in
// order and the first one that applies wins; new platforms add strategies
// here without touching control flow.
type strategy struct {
	name   string
	derive func(Element) (string, bool)
}

var strategies = []strategy{
	{"id", deriveID},
	{"data-attr", deriveDataAttr},
	{"class", deriveClass},
	{"position", derivePosition},
}

// Derive produces a locator string for an element. The positional fallback
// always applies, so Derive is total.
func Derive(el Element) string {
	for _, s := range strategies {
		if loc, ok := s.derive(el); ok {
			return loc
		}
	}
	// Unreachable: derivePosition always applies
	return el.Tag()
}

func deriveID(el Element) (string, bool) {
	id := el.Attr("id")
	if id == "" || ephemeral(id) {
		return "", false
	}
	return "#" + id, true
}

func deriveDataAttr(el Element) (string, bool) {
	for _, attr := range stableAttrs {
		if v := el.Attr(attr); v != "" {
			return fmt.Sprintf("[%s=%q]", attr, v), true
		}
	}
	return "", false
}

func deriveClass(el Element) (string, bool) {
	for _, class := range el.Classes() {
		if class == "" || ephemeral(class) {
			continue
		}
		return "." + class, true
	}
	return "", false
}

func derivePosition(el Element) (string, bool) {
	ord := el.Ordinal()
	if ord < 1 {
		ord = 1
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", el.Tag(), ord), true
}

func ephemeral(token string) bool {
	lower := strings.ToLower(token)
	for _, marker := range ephemeralMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
