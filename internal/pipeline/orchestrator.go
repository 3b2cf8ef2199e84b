// Package pipeline implements the per-request control flow: safety gate,
// essay advisory, heuristic decisions, optional grounding, prompt assembly,
// completion, and persistence. Collaborator failures degrade to valid data;
// every request produces a response.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tutorgate/internal/cache"
	"tutorgate/internal/completion"
	"tutorgate/internal/fetch"
	"tutorgate/internal/heuristics"
	"tutorgate/internal/logging"
	"tutorgate/internal/memory"
	"tutorgate/internal/prompt"
	"tutorgate/internal/safety"
	"tutorgate/internal/search"
)

// Action kinds accepted on the request surface.
const (
	ActionChat          = "chat"
	ActionAnalyzeEssay  = "analyze_essay"
	ActionSearchAnalyze = "search_and_analyze"
	ActionBrowseAnalyze = "browse_and_analyze"
)

// Sampling budgets selected by the reasoning heuristic.
var (
	defaultOptions   = completion.Options{Temperature: 0.7, MaxTokens: 1024}
	reasoningOptions = completion.Options{Temperature: 0.2, MaxTokens: 4096}
)

// Request is the union of one inbound request's fields. It is never
// persisted; only derived messages and cache entries survive it.
type Request struct {
	UserID       string
	Action       string
	Message      string
	Essay        string
	Grade        string
	URL          string
	SearchQuery  string
	Cookies      string
	UseSearch    bool
	UseReasoning bool
}

// Response is the outcome returned to the HTTP surface.
type Response struct {
	Reply         string          `json:"reply"`
	Refused       bool            `json:"refused"`
	Reasons       []string        `json:"reason,omitempty"`
	EssayWarning  *string         `json:"essayWarning,omitempty"`
	UsedSearch    bool            `json:"usedSearch"`
	UsedReasoning bool            `json:"usedReasoning"`
	SearchResults *search.Results `json:"searchResults,omitempty"`
	FromCache     bool            `json:"fromCache,omitempty"`
}

// Completer is the completion backend dependency.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts completion.Options) string
	Configured() bool
}

// Searcher is the search grounding dependency.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Results, error)
	Configured() bool
}

// Orchestrator wires the request pipeline together. All dependencies are
// injected at construction and shared across concurrent requests.
type Orchestrator struct {
	detector *safety.Detector
	builder  *prompt.Builder
	store    memory.Store
	cache    cache.Cache
	llm      Completer
	searcher Searcher
	fetcher  fetch.Fetcher
}

// New constructs the orchestrator.
func New(detector *safety.Detector, builder *prompt.Builder, store memory.Store,
	resultCache cache.Cache, llm Completer, searcher Searcher, fetcher fetch.Fetcher) *Orchestrator {
	return &Orchestrator{
		detector: detector,
		builder:  builder,
		store:    store,
		cache:    resultCache,
		llm:      llm,
		searcher: searcher,
		fetcher:  fetcher,
	}
}

// Handle runs one request through the pipeline.
func (o *Orchestrator) Handle(ctx context.Context, req Request) Response {
	if req.Action == "" {
		req.Action = ActionChat
	}
	user := memory.NormalizeUser(req.UserID)

	// Gate: only the caller's direct instruction (message plus URL) can
	// trigger refusal.
	intentText := strings.TrimSpace(req.Message + " " + req.URL)
	if findings := o.detector.Detect(intentText); len(findings) > 0 {
		reasons := safety.Reasons(findings)
		logging.Safety("refused %s request from %s: %v", req.Action, user, reasons)
		return Response{
			Refused: true,
			Reasons: reasons,
			Reply: fmt.Sprintf(
				"I can't help with that request (%s). I'm happy to help you learn the material, plan your own writing, or practice the skills involved instead.",
				strings.Join(reasons, "; ")),
		}
	}

	// Advisory only: sensitive phrases inside a student's own writing
	// never block analysis.
	var essayWarning *string
	if req.Essay != "" {
		if findings := o.detector.Detect(req.Essay); len(findings) > 0 {
			w := fmt.Sprintf("Note: the submitted text contains sensitive content (%s). Analysis proceeds; review the context with the student.",
				strings.Join(safety.Reasons(findings), "; "))
			essayWarning = &w
		}
	}

	hreq := heuristics.Request{
		Action:         req.Action,
		Message:        req.Message,
		Essay:          req.Essay,
		URL:            req.URL,
		SearchOverride: req.UseSearch,
		ReasonOverride: req.UseReasoning,
	}
	wantSearch := heuristics.NeedsSearch(hreq)
	reasoning := heuristics.NeedsReasoning(hreq)

	opts := defaultOptions
	if reasoning {
		opts = reasoningOptions
	}

	resp := Response{UsedReasoning: reasoning, EssayWarning: essayWarning}

	switch req.Action {
	case ActionAnalyzeEssay:
		o.analyzeEssay(ctx, req, user, opts, &resp)
	case ActionSearchAnalyze:
		o.searchAndAnalyze(ctx, req, user, opts, &resp)
	case ActionBrowseAnalyze:
		o.browseAndAnalyze(ctx, req, user, opts, &resp)
	default:
		o.chat(ctx, req, user, wantSearch, opts, &resp)
	}

	o.persist(ctx, user, req, resp.Reply)
	return resp
}

// chat answers an open conversational turn, optionally grounded by search.
func (o *Orchestrator) chat(ctx context.Context, req Request, user string, wantSearch bool, opts completion.Options, resp *Response) {
	task, err := prompt.NewChatTask(req.Message, resp.UsedReasoning)
	if err != nil {
		resp.Reply = "Please include a message so I know what to help with."
		return
	}

	var extra string
	if wantSearch {
		results := o.ground(ctx, firstNonEmpty(req.SearchQuery, req.Message), resp)
		if results != nil {
			extra = "Grounding from web search:\n" + search.RenderGrounding(results)
		}
	}

	final := o.builder.ComposeTaskPrompt(ctx, task, user, req.Grade, extra)
	resp.Reply = o.llm.Complete(ctx, final, opts)
}

// analyzeEssay produces the structured essay feedback, memoized per user
// and essay body.
func (o *Orchestrator) analyzeEssay(ctx context.Context, req Request, user string, opts completion.Options, resp *Response) {
	task, err := prompt.NewEssayTask(req.Essay)
	if err != nil {
		resp.Reply = "Please include the essay text to analyze."
		return
	}

	key := cache.EssayKey(user, task.Essay)
	if cached, ok := o.cache.Get(key); ok {
		logging.Cache("essay analysis served from cache for %s", user)
		resp.Reply = cached
		resp.FromCache = true
		return
	}

	final := o.builder.ComposeTaskPrompt(ctx, task, user, req.Grade, "")
	reply := o.llm.Complete(ctx, final, opts)
	resp.Reply = reply

	if o.llm.Configured() {
		o.cache.Set(key, reply, cache.EssayTTL)
	}
}

// searchAndAnalyze grounds the query with search hits and asks for a
// grade-appropriate synthesis.
func (o *Orchestrator) searchAndAnalyze(ctx context.Context, req Request, user string, opts completion.Options, resp *Response) {
	query := firstNonEmpty(req.SearchQuery, req.Message)
	if strings.TrimSpace(query) == "" {
		resp.Reply = "Please include a message or searchQuery describing what to look up."
		return
	}

	results := o.ground(ctx, query, resp)
	task, err := prompt.NewSearchTask(query, search.RenderGrounding(results))
	if err != nil {
		resp.Reply = "Please include a message or searchQuery describing what to look up."
		return
	}

	final := o.builder.ComposeTaskPrompt(ctx, task, user, req.Grade, "")
	resp.Reply = o.llm.Complete(ctx, final, opts)
}

// browseAndAnalyze fetches the target page (cache-checked) and asks for a
// grade-appropriate summary of it.
func (o *Orchestrator) browseAndAnalyze(ctx context.Context, req Request, user string, opts completion.Options, resp *Response) {
	if strings.TrimSpace(req.URL) == "" {
		resp.Reply = "Please include the url of the page to read."
		return
	}

	pageText := o.fetchPage(ctx, req.URL, req.Cookies, resp)
	task, err := prompt.NewBrowseTask(req.URL, pageText)
	if err != nil {
		resp.Reply = "Please include the url of the page to read."
		return
	}

	final := o.builder.ComposeTaskPrompt(ctx, task, user, req.Grade, "")
	resp.Reply = o.llm.Complete(ctx, final, opts)
}

// ground fetches search results through the cache. Failure degrades to nil
// results; the request continues ungrounded.
func (o *Orchestrator) ground(ctx context.Context, query string, resp *Response) *search.Results {
	if o.searcher == nil || !o.searcher.Configured() {
		return nil
	}

	key := cache.SearchKey(query)
	if cached, ok := o.cache.Get(key); ok {
		var results search.Results
		if err := json.Unmarshal([]byte(cached), &results); err == nil {
			logging.Cache("search grounding served from cache for %q", query)
			resp.UsedSearch = true
			resp.FromCache = true
			resp.SearchResults = &results
			return &results
		}
	}

	results, err := o.searcher.Search(ctx, query)
	if err != nil {
		logging.SearchError("grounding failed for %q: %v", query, err)
		return nil
	}
	resp.UsedSearch = true
	resp.SearchResults = results

	if encoded, err := json.Marshal(results); err == nil {
		o.cache.Set(key, string(encoded), cache.SearchTTL)
	}
	return results
}

// fetchPage retrieves page text through the cache. Failure degrades to
// empty text; the analysis proceeds with what it has.
func (o *Orchestrator) fetchPage(ctx context.Context, pageURL, cookies string, resp *Response) string {
	key := cache.PageKey(pageURL)
	if cached, ok := o.cache.Get(key); ok {
		logging.Cache("page text served from cache for %s", pageURL)
		resp.FromCache = true
		return cached
	}

	if o.fetcher == nil {
		return ""
	}
	text, err := o.fetcher.FetchText(ctx, pageURL, cookies)
	if err != nil {
		logging.BrowserError("fetch of %s failed: %v", pageURL, err)
		return ""
	}

	o.cache.Set(key, text, cache.PageTTL)
	return text
}

// persist appends the inbound user turn and the produced reply. Append
// errors are logged and swallowed; persistence must not fail the response.
func (o *Orchestrator) persist(ctx context.Context, user string, req Request, reply string) {
	userTurn := req.Message
	if strings.TrimSpace(userTurn) == "" {
		switch req.Action {
		case ActionAnalyzeEssay:
			userTurn = "[submitted an essay for analysis]"
		case ActionBrowseAnalyze:
			userTurn = "[asked to read " + req.URL + "]"
		default:
			userTurn = "[empty message]"
		}
	}

	if err := o.store.Append(ctx, user, memory.RoleUser, userTurn); err != nil {
		logging.StoreError("failed to persist user turn for %s: %v", user, err)
	}
	if reply != "" {
		if err := o.store.Append(ctx, user, memory.RoleAssistant, reply); err != nil {
			logging.StoreError("failed to persist assistant turn for %s: %v", user, err)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
