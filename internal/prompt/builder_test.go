package prompt

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgate/internal/memory"
	"tutorgate/internal/rubric"
	"tutorgate/internal/safety"
)

func newTestBuilder(t *testing.T) (*Builder, memory.Store) {
	t.Helper()
	store := memory.NewInMemoryStore()
	return NewBuilder(safety.NewRuleSet([]string{"Extra rule for testing."}), store), store
}

func TestBuildSystemPrompt(t *testing.T) {
	b, _ := newTestBuilder(t)
	p := b.BuildSystemPrompt("9")

	assert.Contains(t, p, "writing tutor")
	// Rules are 1-indexed and include the extension.
	assert.Contains(t, p, "1. "+safety.BaseRules[0])
	assert.Contains(t, p, fmt.Sprintf("%d. Extra rule for testing.", len(safety.BaseRules)+1))
	// Grade summary is injected verbatim.
	assert.Contains(t, p, rubric.Summarize("9"))
	assert.Contains(t, p, "Never reveal step-by-step internal deliberation")
}

func TestBuildConversationContextWindowsHistory(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	for i := 0; i < HistoryWindow+5; i++ {
		require.NoError(t, store.Append(ctx, "alice", memory.RoleUser, fmt.Sprintf("m%d", i)))
	}

	out := b.BuildConversationContext(ctx, "alice", "", "")
	assert.NotContains(t, out, "Student: m4\n") // beyond the window
	assert.Contains(t, out, "Student: m5\n")    // oldest rendered entry
	assert.Contains(t, out, fmt.Sprintf("Student: m%d\n", HistoryWindow+4))

	// Oldest first.
	assert.Less(t, strings.Index(out, "Student: m5\n"), strings.Index(out, "Student: m6\n"))
}

func TestBuildConversationContextLabelsRoles(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "bob", memory.RoleUser, "question"))
	require.NoError(t, store.Append(ctx, "bob", memory.RoleAssistant, "answer"))

	out := b.BuildConversationContext(ctx, "bob", "", "grounding text here")
	assert.Contains(t, out, "Student: question")
	assert.Contains(t, out, "Assistant: answer")
	assert.Contains(t, out, "grounding text here")
}

func TestChatTask(t *testing.T) {
	_, err := NewChatTask("  ", false)
	assert.Error(t, err)

	task, err := NewChatTask("hello", true)
	require.NoError(t, err)
	assert.Equal(t, "chat", task.Kind())

	b, _ := newTestBuilder(t)
	out := b.ComposeTaskPrompt(context.Background(), task, "anon", "", "")
	assert.Contains(t, out, "Student: hello")
	assert.True(t, strings.HasSuffix(out, "Assistant:"))
	// Reasoning directive is embedded but demands no visible working.
	assert.Contains(t, out, "Do not show your working")
}

func TestEssayTaskTruncation(t *testing.T) {
	_, err := NewEssayTask("")
	assert.Error(t, err)

	long := strings.Repeat("x", EssayMaxLen+500)
	task, err := NewEssayTask(long)
	require.NoError(t, err)
	assert.Len(t, task.Essay, EssayMaxLen)
}

func TestEssayTaskInstructions(t *testing.T) {
	task, err := NewEssayTask("My essay body.")
	require.NoError(t, err)

	b, _ := newTestBuilder(t)
	out := b.ComposeTaskPrompt(context.Background(), task, "anon", "7", "")
	assert.Contains(t, out, "one-paragraph summary")
	assert.Contains(t, out, "structure, thesis, evidence, and clarity")
	assert.Contains(t, out, "grade 6-8 student")
	assert.Contains(t, out, "guiding questions")
	assert.Contains(t, out, "Do not rewrite or complete the essay")
	assert.Contains(t, out, "My essay body.")
}

func TestSearchTask(t *testing.T) {
	_, err := NewSearchTask("", "results")
	assert.Error(t, err)

	task, err := NewSearchTask("photosynthesis", "1. A result")
	require.NoError(t, err)

	b, _ := newTestBuilder(t)
	out := b.ComposeTaskPrompt(context.Background(), task, "anon", "4", "")
	assert.Contains(t, out, "1. A result")
	assert.Contains(t, out, "grade K-5-appropriate summary")
	assert.Contains(t, out, "photosynthesis")
}

func TestBrowseTaskTruncatesPageText(t *testing.T) {
	task, err := NewBrowseTask("https://example.com", strings.Repeat("p", PageMaxLen+100))
	require.NoError(t, err)
	assert.Len(t, task.PageText, PageMaxLen)

	b, _ := newTestBuilder(t)
	out := b.ComposeTaskPrompt(context.Background(), task, "anon", "", "")
	assert.Contains(t, out, "https://example.com")
	assert.Contains(t, out, "general-audience student")
}

func TestBrowseTaskEmptyPage(t *testing.T) {
	task, err := NewBrowseTask("https://example.com", "")
	require.NoError(t, err)

	b, _ := newTestBuilder(t)
	out := b.ComposeTaskPrompt(context.Background(), task, "anon", "", "")
	assert.Contains(t, out, "(page content unavailable)")
}
