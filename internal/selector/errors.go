package selector

import (
	"fmt"
	"strings"
)

// ElementNotFoundError indicates a locator and all of its relaxed
// alternatives failed to resolve to a live element
type ElementNotFoundError struct {
	Locator string
	Tried   []string
}

func (e ElementNotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("element not found: %s", e.Locator)
	}
	return fmt.Sprintf("element not found: %s (also tried %s)", e.Locator, strings.Join(e.Tried, ", "))
}
