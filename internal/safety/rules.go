// Package safety holds the content-safety rule list and the pattern-based
// violation detector. Rules are data consumed by the prompt builder; the
// detector gates only the user's explicit intent, never submitted essay text.
package safety

// BaseRules is the fixed, versioned rule list. Order matters: rules are
// rendered 1-indexed into every system prompt.
var BaseRules = []string{
	"Never complete a student's graded work for them; guide, scaffold, and explain instead.",
	"Refuse requests to write essays, homework answers, or test responses intended for submission.",
	"Refuse any request for help cheating, plagiarizing, or evading academic-integrity tools.",
	"Refuse instructions for weapons, explosives, or any physically harmful device.",
	"Refuse requests to break into, disrupt, or damage computer systems or accounts.",
	"Keep all guidance age-appropriate for the stated grade level.",
	"When refusing, explain why briefly and offer a constructive alternative.",
}

// RuleSet is the ordered rule list given to the prompt builder: BaseRules
// concatenated with operator-supplied extras, fixed at process start.
type RuleSet struct {
	rules []string
}

// NewRuleSet builds the rule set from the base list plus extras.
func NewRuleSet(extra []string) *RuleSet {
	rules := make([]string, 0, len(BaseRules)+len(extra))
	rules = append(rules, BaseRules...)
	rules = append(rules, extra...)
	return &RuleSet{rules: rules}
}

// Rules returns the ordered rule list.
func (rs *RuleSet) Rules() []string {
	return rs.rules
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
