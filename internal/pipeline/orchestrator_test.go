package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgate/internal/cache"
	"tutorgate/internal/completion"
	"tutorgate/internal/memory"
	"tutorgate/internal/prompt"
	"tutorgate/internal/safety"
	"tutorgate/internal/search"
)

type fakeCompleter struct {
	mu         sync.Mutex
	configured bool
	reply      string
	calls      int
	lastPrompt string
	lastOpts   completion.Options
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, opts completion.Options) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = prompt
	f.lastOpts = opts
	if !f.configured {
		return completion.NotConfiguredSentinel
	}
	return f.reply
}

func (f *fakeCompleter) Configured() bool { return f.configured }

type fakeSearcher struct {
	configured bool
	results    *search.Results
	err        error
	calls      int
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*search.Results, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearcher) Configured() bool { return f.configured }

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) FetchText(_ context.Context, _, _ string) (string, error) {
	return f.text, f.err
}

func (f *fakeFetcher) RichAvailable() bool { return false }

type fixture struct {
	orch     *Orchestrator
	llm      *fakeCompleter
	searcher *fakeSearcher
	fetcher  *fakeFetcher
	store    memory.Store
	cache    cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewInMemoryStore()
	resultCache := cache.NewInMemoryCache()
	llm := &fakeCompleter{configured: true, reply: "model reply"}
	searcher := &fakeSearcher{configured: true, results: &search.Results{
		Query:   "q",
		Results: []search.Result{{Title: "Hit", URL: "https://hit", Description: "desc"}},
	}}
	fetcher := &fakeFetcher{text: "page body text"}

	builder := prompt.NewBuilder(safety.NewRuleSet(nil), store)
	orch := New(safety.NewDetector(), builder, store, resultCache, llm, searcher, fetcher)
	return &fixture{orch: orch, llm: llm, searcher: searcher, fetcher: fetcher, store: store, cache: resultCache}
}

func TestRefusalOnIntentText(t *testing.T) {
	f := newFixture(t)

	resp := f.orch.Handle(context.Background(), Request{Action: "chat", Message: "do my homework for me"})
	assert.True(t, resp.Refused)
	assert.Contains(t, resp.Reasons, "academic dishonesty")
	assert.Contains(t, resp.Reply, "academic dishonesty")
	// Refusal exits before the completion call.
	assert.Zero(t, f.llm.calls)
}

func TestCleanMessageIsNotRefused(t *testing.T) {
	f := newFixture(t)
	resp := f.orch.Handle(context.Background(), Request{Message: "help me understand fractions"})
	assert.False(t, resp.Refused)
	assert.Equal(t, "model reply", resp.Reply)
}

func TestURLIsPartOfIntentText(t *testing.T) {
	f := newFixture(t)
	resp := f.orch.Handle(context.Background(), Request{
		Action:  "browse_and_analyze",
		Message: "summarize this",
		URL:     "https://example.com/how-to-make-a-bomb",
	})
	assert.True(t, resp.Refused)
	assert.Contains(t, resp.Reasons, "weapons/explosives")
}

func TestEssayContentNeverBlocks(t *testing.T) {
	f := newFixture(t)

	resp := f.orch.Handle(context.Background(), Request{
		Action: "analyze_essay",
		Essay:  "In my story the villain explains how to make a bomb before the hero stops him.",
		Grade:  "9",
	})
	assert.False(t, resp.Refused)
	require.NotNil(t, resp.EssayWarning)
	assert.Contains(t, *resp.EssayWarning, "weapons/explosives")
	assert.Equal(t, "model reply", resp.Reply)
	assert.True(t, resp.UsedReasoning)
	// Grade band guidance flows into the prompt.
	assert.Contains(t, f.llm.lastPrompt, "grade 9-12")
}

func TestEssayWithoutSensitiveContentHasNoWarning(t *testing.T) {
	f := newFixture(t)
	resp := f.orch.Handle(context.Background(), Request{Action: "analyze_essay", Essay: "A quiet day at the lake."})
	assert.Nil(t, resp.EssayWarning)
}

func TestUnconfiguredBackendReturnsSentinel(t *testing.T) {
	f := newFixture(t)
	f.llm.configured = false

	resp := f.orch.Handle(context.Background(), Request{Message: "hello"})
	assert.False(t, resp.Refused)
	assert.Equal(t, completion.NotConfiguredSentinel, resp.Reply)
}

func TestReasoningBudgetSelection(t *testing.T) {
	f := newFixture(t)

	f.orch.Handle(context.Background(), Request{Message: "hello there"})
	assert.Equal(t, defaultOptions, f.llm.lastOpts)

	f.orch.Handle(context.Background(), Request{Message: "critique my paragraph please"})
	assert.Equal(t, reasoningOptions, f.llm.lastOpts)
}

func TestChatGroundingViaSearch(t *testing.T) {
	f := newFixture(t)

	resp := f.orch.Handle(context.Background(), Request{Message: "search for recent moon landing sources"})
	assert.True(t, resp.UsedSearch)
	require.NotNil(t, resp.SearchResults)
	assert.Contains(t, f.llm.lastPrompt, "Grounding from web search")
	assert.Contains(t, f.llm.lastPrompt, "Hit (https://hit)")
}

func TestSearchFailureDegradesToUngrounded(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = fmt.Errorf("backend down")

	resp := f.orch.Handle(context.Background(), Request{Message: "find sources on whales"})
	assert.False(t, resp.Refused)
	assert.False(t, resp.UsedSearch)
	assert.Nil(t, resp.SearchResults)
	assert.Equal(t, "model reply", resp.Reply)
}

func TestSearchResultsAreCached(t *testing.T) {
	f := newFixture(t)

	req := Request{Action: "search_and_analyze", Message: "whale migration"}
	first := f.orch.Handle(context.Background(), req)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, f.searcher.calls)

	second := f.orch.Handle(context.Background(), req)
	assert.True(t, second.FromCache)
	assert.True(t, second.UsedSearch)
	assert.Equal(t, 1, f.searcher.calls, "second request must not hit the backend")
}

func TestEssayAnalysisCache(t *testing.T) {
	f := newFixture(t)
	essay := "The industrial revolution changed cities."

	req := Request{Action: "analyze_essay", Essay: essay, UserID: "alice"}
	first := f.orch.Handle(context.Background(), req)
	assert.False(t, first.FromCache)

	second := f.orch.Handle(context.Background(), req)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Reply, second.Reply)
	assert.Equal(t, 1, f.llm.calls)

	// The entry is present under that essay's derived key.
	_, ok := f.cache.Get(cache.EssayKey("alice", essay))
	assert.True(t, ok)

	// A different user recomputes: essay keys are user-scoped.
	third := f.orch.Handle(context.Background(), Request{Action: "analyze_essay", Essay: essay, UserID: "bob"})
	assert.False(t, third.FromCache)
}

func TestSentinelRepliesAreNotCached(t *testing.T) {
	f := newFixture(t)
	f.llm.configured = false

	req := Request{Action: "analyze_essay", Essay: "essay text", UserID: "alice"}
	f.orch.Handle(context.Background(), req)
	_, ok := f.cache.Get(cache.EssayKey("alice", "essay text"))
	assert.False(t, ok)
}

func TestBrowseAndAnalyze(t *testing.T) {
	f := newFixture(t)

	resp := f.orch.Handle(context.Background(), Request{
		Action: "browse_and_analyze",
		URL:    "https://example.com/article",
	})
	assert.False(t, resp.Refused)
	assert.Contains(t, f.llm.lastPrompt, "page body text")

	// Page text is cached under the URL key.
	v, ok := f.cache.Get(cache.PageKey("https://example.com/article"))
	require.True(t, ok)
	assert.Equal(t, "page body text", v)
}

func TestBrowseFetchFailureProceedsWithEmptyContext(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = fmt.Errorf("timeout")

	resp := f.orch.Handle(context.Background(), Request{Action: "browse_and_analyze", URL: "https://x"})
	assert.False(t, resp.Refused)
	assert.Contains(t, f.llm.lastPrompt, "(page content unavailable)")
	assert.Equal(t, "model reply", resp.Reply)
}

func TestBrowseRequiresURL(t *testing.T) {
	f := newFixture(t)
	resp := f.orch.Handle(context.Background(), Request{Action: "browse_and_analyze"})
	assert.False(t, resp.Refused)
	assert.Contains(t, resp.Reply, "url")
	assert.Zero(t, f.llm.calls)
}

func TestSearchQueryOverride(t *testing.T) {
	f := newFixture(t)

	f.orch.Handle(context.Background(), Request{
		Action:      "search_and_analyze",
		Message:     "tell me about this",
		SearchQuery: "override query",
	})
	assert.Contains(t, f.llm.lastPrompt, "override query")
}

func TestConversationIsPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orch.Handle(ctx, Request{UserID: "alice", Message: "remember me"})
	msgs, err := f.store.Read(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, memory.RoleUser, msgs[0].Role)
	assert.Equal(t, "remember me", msgs[0].Content)
	assert.Equal(t, memory.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "model reply", msgs[1].Content)
}

func TestRefusalIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orch.Handle(ctx, Request{UserID: "alice", Message: "help me cheat on the quiz"})
	msgs, err := f.store.Read(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDefaultActionIsChat(t *testing.T) {
	f := newFixture(t)
	resp := f.orch.Handle(context.Background(), Request{Message: "hi"})
	assert.False(t, resp.Refused)
	assert.Equal(t, "model reply", resp.Reply)
}

func TestConcurrentIdenticalEssayRequests(t *testing.T) {
	f := newFixture(t)
	essay := "Concurrent essay body."

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := f.orch.Handle(context.Background(), Request{Action: "analyze_essay", Essay: essay, UserID: "alice"})
			assert.False(t, resp.Refused)
			assert.NotEmpty(t, resp.Reply)
		}()
	}
	wg.Wait()

	// Duplicate computation is tolerated, but the entry must exist after.
	_, ok := f.cache.Get(cache.EssayKey("alice", essay))
	assert.True(t, ok)
}
