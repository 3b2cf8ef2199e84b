package safety

import (
	"strings"

	"tutorgate/internal/logging"
)

// Finding names one matched violation category.
type Finding struct {
	Reason string
}

// violationPattern maps trigger phrases to a named reason. Matching is
// case-insensitive substring containment; declaration order is result order.
type violationPattern struct {
	reason   string
	triggers []string
}

var patterns = []violationPattern{
	{
		reason: "academic dishonesty",
		triggers: []string{
			"do my homework",
			"write my essay for me",
			"write the essay for me",
			"do my assignment",
			"write my paper for me",
			"do this worksheet for me",
		},
	},
	{
		reason: "cheating",
		triggers: []string{
			"help me cheat",
			"answers to the test",
			"answers to the exam",
			"answer key",
			"bypass the plagiarism",
			"beat the plagiarism checker",
		},
	},
	{
		reason: "weapons/explosives",
		triggers: []string{
			"how to make a bomb",
			"build a bomb",
			"make an explosive",
			"build a weapon",
			"make a gun",
		},
	},
	{
		reason: "illegal hacking",
		triggers: []string{
			"hack into",
			"steal a password",
			"steal passwords",
			"ddos",
			"break into an account",
			"bypass the school firewall",
		},
	},
	{
		reason: "disruptive gameplay",
		triggers: []string{
			"crash the server",
			"grief other players",
			"ruin the game for",
			"exploit to crash",
		},
	},
}

// Detector is the stateless pattern classifier.
type Detector struct{}

// NewDetector returns the classifier over the fixed pattern table.
func NewDetector() *Detector {
	return &Detector{}
}

// separatorFolder maps the word separators found in URL paths and slugs to
// spaces, so multi-word triggers match inside them too.
var separatorFolder = strings.NewReplacer("%20", " ", "-", " ", "_", " ", "/", " ", ".", " ", "+", " ")

// Detect returns every matched violation category for the given text, in
// pattern declaration order. Deterministic and case-insensitive.
func (d *Detector) Detect(text string) []Finding {
	folded := separatorFolder.Replace(strings.ToLower(text))

	var findings []Finding
	for _, p := range patterns {
		for _, trigger := range p.triggers {
			if strings.Contains(folded, trigger) {
				findings = append(findings, Finding{Reason: p.reason})
				break
			}
		}
	}

	if len(findings) > 0 {
		logging.Safety("detected %d violation(s) in span of %d chars", len(findings), len(text))
	}
	return findings
}

// Reasons flattens findings into their reason strings.
func Reasons(findings []Finding) []string {
	if len(findings) == 0 {
		return nil
	}
	reasons := make([]string, len(findings))
	for i, f := range findings {
		reasons[i] = f.Reason
	}
	return reasons
}
