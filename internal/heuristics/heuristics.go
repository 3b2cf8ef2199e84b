// Package heuristics decides, per request, whether search grounding is
// needed and whether the completion call deserves an extended reasoning
// budget. Both are independent boolean decisions defaulting to false.
package heuristics

import (
	"strings"
)

// LengthThreshold is the message/essay size beyond which a request is
// treated as analysis-heavy.
const LengthThreshold = 800

var searchKeywords = []string{
	"search for",
	"find",
	"sources",
	"verify",
	"ground",
	"cite",
	"reference",
	"references",
}

var reasoningKeywords = []string{
	"analyze",
	"critique",
	"evaluate",
	"grade",
	"feedback",
	"rubric",
	"thesis",
}

// Request carries the fields the engine inspects. Override flags are the
// caller's explicit opt-ins from the API surface.
type Request struct {
	Action         string
	Message        string
	Essay          string
	URL            string
	SearchOverride bool
	ReasonOverride bool
}

// NeedsSearch reports whether grounding should be fetched: explicit
// override, grounding-intent keywords in the message, or a target URL.
func NeedsSearch(req Request) bool {
	if req.SearchOverride {
		return true
	}
	if req.URL != "" {
		return true
	}
	msg := strings.ToLower(req.Message)
	for _, kw := range searchKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// NeedsReasoning reports whether the completion should run with the wider
// token budget and lower temperature: explicit override, essay analysis,
// long input, or analytical-intent keywords. The decision itself is never
// surfaced to the caller, only its effect on the budget.
func NeedsReasoning(req Request) bool {
	if req.ReasonOverride {
		return true
	}
	if req.Action == "analyze_essay" {
		return true
	}
	if len(req.Message) > LengthThreshold || len(req.Essay) > LengthThreshold {
		return true
	}
	msg := strings.ToLower(req.Message)
	for _, kw := range reasoningKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
