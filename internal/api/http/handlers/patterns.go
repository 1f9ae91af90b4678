package handlers

import (
	"net/http"
	"sort"

	"github.com/formpilot/engine/internal/pattern"
)

// PatternHandlers provides HTTP handlers for stable-pattern inspection
type PatternHandlers struct {
	filter *pattern.Filter
}

// NewPatternHandlers creates new pattern handlers
func NewPatternHandlers(filter *pattern.Filter) *PatternHandlers {
	return &PatternHandlers{filter: filter}
}

// Pattern is one stable action shape with its occurrence count
type Pattern struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// ListPatternsResponse represents a response to listing stable patterns
type ListPatternsResponse struct {
	Status    string    `json:"status"`
	Threshold int       `json:"threshold"`
	Patterns  []Pattern `json:"patterns"`
}

// List handles GET /api/v1/patterns
func (h *PatternHandlers) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stable, err := h.filter.Stable(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	patterns := make([]Pattern, 0, len(stable))
	for key, count := range stable {
		patterns = append(patterns, Pattern{
			Kind:   string(key.Kind),
			Target: key.Target,
			Count:  count,
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		if patterns[i].Kind != patterns[j].Kind {
			return patterns[i].Kind < patterns[j].Kind
		}
		return patterns[i].Target < patterns[j].Target
	})

	writeJSON(w, http.StatusOK, ListPatternsResponse{
		Status:    "ok",
		Threshold: h.filter.Threshold(),
		Patterns:  patterns,
	})
}
