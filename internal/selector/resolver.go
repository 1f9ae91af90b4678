package selector

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultRetryWait bounds the wait before the second direct lookup,
// covering asynchronous page rendering.
const DefaultRetryWait = 2 * time.Second

// Resolver re-resolves stored locators against the current page instance,
// relaxing the locator when the exact form no longer matches.
type Resolver struct {
	finder    Finder
	retryWait time.Duration
}

// NewResolver creates a resolver over a finder. A non-positive retryWait
// falls back to DefaultRetryWait.
func NewResolver(finder Finder, retryWait time.Duration) *Resolver {
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}
	return &Resolver{finder: finder, retryWait: retryWait}
}

// Resolve locates the element for a stored locator: direct lookup, one
// bounded-wait retry, then each relaxed alternative in order. The wait is
// interruptible through ctx.
func (r *Resolver) Resolve(ctx context.Context, locator string) (Element, error) {
	if el, ok := r.finder.Query(locator); ok {
		return el, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.retryWait):
	}

	if el, ok := r.finder.Query(locator); ok {
		return el, nil
	}

	alternatives := Relax(locator)
	for _, alt := range alternatives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if el, ok := r.finder.Query(alt); ok {
			return el, nil
		}
	}

	return nil, ElementNotFoundError{Locator: locator, Tried: alternatives}
}

// Relax generates alternative locators from a stored one, loosening exact
// matches into substring matches. Exhausting the result is a resolution
// failure.
func Relax(locator string) []string {
	switch {
	case strings.HasPrefix(locator, "#"):
		return []string{fmt.Sprintf("[id*=%q]", locator[1:])}
	case strings.HasPrefix(locator, "."):
		return []string{fmt.Sprintf("[class*=%q]", locator[1:])}
	case strings.HasPrefix(locator, "["):
		if name, value, ok := splitAttr(locator); ok {
			return []string{fmt.Sprintf("[%s*=%q]", name, value)}
		}
		return nil
	case strings.Contains(locator, ":nth-of-type("):
		// Positional locator: fall back to the first element of the tag
		return []string{locator[:strings.Index(locator, ":")]}
	default:
		return nil
	}
}

// splitAttr parses `[name="value"]` into its parts
func splitAttr(locator string) (name, value string, ok bool) {
	body := strings.TrimSuffix(strings.TrimPrefix(locator, "["), "]")
	name, rest, found := strings.Cut(body, "=")
	if !found {
		return "", "", false
	}
	value = strings.Trim(rest, `"`)
	if name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}
