// Package prompt assembles the system prompt, conversation context, and
// task-specific final prompt sent to the completion backend. Task shapes are
// tagged variants validated at construction.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"tutorgate/internal/logging"
	"tutorgate/internal/memory"
	"tutorgate/internal/rubric"
	"tutorgate/internal/safety"
)

// HistoryWindow bounds how many stored messages are rendered into the
// conversation context.
const HistoryWindow = 40

// Builder composes prompts from the rule set, grade rubric, and stored
// conversation history.
type Builder struct {
	rules *safety.RuleSet
	store memory.Store
}

// NewBuilder constructs a prompt builder.
func NewBuilder(rules *safety.RuleSet, store memory.Store) *Builder {
	return &Builder{rules: rules, store: store}
}

// BuildSystemPrompt renders the role framing, the enumerated rule list, the
// grade-rubric summary, and the closing conduct instruction.
func (b *Builder) BuildSystemPrompt(gradeDesignator string) string {
	var sb strings.Builder

	sb.WriteString("You are a patient writing tutor helping students and teachers improve student writing.\n\n")

	sb.WriteString("Rules you must always follow:\n")
	for i, rule := range b.rules.Rules() {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, rule)
	}

	sb.WriteString("\nGrading expectations for this student:\n")
	sb.WriteString(rubric.Summarize(gradeDesignator))
	sb.WriteString("\n")

	sb.WriteString("\nIf a request violates a rule, refuse briefly and offer a constructive alternative. ")
	sb.WriteString("Never reveal step-by-step internal deliberation; give only the final user-facing answer.\n")

	return sb.String()
}

// BuildConversationContext renders the system prompt followed by the most
// recent bounded window of the user's conversation, oldest first, then any
// extra grounding text.
func (b *Builder) BuildConversationContext(ctx context.Context, user, gradeDesignator, extra string) string {
	var sb strings.Builder
	sb.WriteString(b.BuildSystemPrompt(gradeDesignator))

	history, err := b.store.Read(ctx, user)
	if err != nil {
		// Degrade to a history-free prompt; the request must still proceed.
		logging.Get(logging.CategoryPrompt).Warn("failed to read conversation for %s: %v", user, err)
		history = nil
	}
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, msg := range history {
			label := "Student"
			if msg.Role == memory.RoleAssistant {
				label = "Assistant"
			}
			fmt.Fprintf(&sb, "%s: %s\n", label, msg.Content)
		}
	}

	if strings.TrimSpace(extra) != "" {
		sb.WriteString("\n")
		sb.WriteString(extra)
		sb.WriteString("\n")
	}

	return sb.String()
}

// ComposeTaskPrompt merges the assembled context with the task's own
// instruction block into the final model prompt.
func (b *Builder) ComposeTaskPrompt(ctx context.Context, task Task, user, gradeDesignator, extra string) string {
	timer := logging.StartTimer(logging.CategoryPrompt, "ComposeTaskPrompt")
	defer timer.Stop()

	var sb strings.Builder
	sb.WriteString(b.BuildConversationContext(ctx, user, gradeDesignator, extra))
	sb.WriteString("\n")
	task.render(&sb, rubric.Normalize(gradeDesignator))

	logging.PromptDebug("composed %s prompt: %d chars", task.Kind(), sb.Len())
	return sb.String()
}
