package prompt

import (
	"fmt"
	"strings"

	"tutorgate/internal/rubric"
)

// Bounds applied when tasks are constructed. Oversized essay or page text is
// silently truncated; this is a cost/latency bound, not an error.
const (
	EssayMaxLen = 30000
	PageMaxLen  = 12000
)

// Task is one of the four prompt shapes. Each variant validates its required
// fields at construction and knows how to render its own instruction block.
type Task interface {
	// Kind names the task for logging and response metadata.
	Kind() string
	// render appends the task-specific instruction block to the assembled
	// context. The grade band tailors instruction text where relevant.
	render(sb *strings.Builder, band rubric.Band)
}

// ChatTask continues an open conversation.
type ChatTask struct {
	Message   string
	Reasoning bool
}

// NewChatTask builds the open-chat variant.
func NewChatTask(message string, reasoning bool) (ChatTask, error) {
	if strings.TrimSpace(message) == "" {
		return ChatTask{}, fmt.Errorf("chat task requires a message")
	}
	return ChatTask{Message: message, Reasoning: reasoning}, nil
}

func (t ChatTask) Kind() string { return "chat" }

func (t ChatTask) render(sb *strings.Builder, _ rubric.Band) {
	if t.Reasoning {
		sb.WriteString("(Think through this carefully before answering. Do not show your working; reply with the final answer only.)\n\n")
	}
	sb.WriteString("Student: ")
	sb.WriteString(t.Message)
	sb.WriteString("\nAssistant:")
}

// EssayTask requests the structured essay analysis.
type EssayTask struct {
	Essay string
}

// NewEssayTask builds the essay-analysis variant, truncating oversized
// bodies to the fixed bound.
func NewEssayTask(essay string) (EssayTask, error) {
	if strings.TrimSpace(essay) == "" {
		return EssayTask{}, fmt.Errorf("essay task requires essay text")
	}
	if len(essay) > EssayMaxLen {
		essay = essay[:EssayMaxLen]
	}
	return EssayTask{Essay: essay}, nil
}

func (t EssayTask) Kind() string { return "analyze_essay" }

func (t EssayTask) render(sb *strings.Builder, band rubric.Band) {
	sb.WriteString("Analyze the student essay below. Produce, in order:\n")
	sb.WriteString("1. A one-paragraph summary of what the essay says.\n")
	sb.WriteString("2. Its concrete strengths.\n")
	sb.WriteString("3. Its weaknesses across structure, thesis, evidence, and clarity.\n")
	fmt.Fprintf(sb, "4. Numbered revision steps appropriate for a %s student.\n", bandLabel(band))
	sb.WriteString("5. Three to six guiding questions a teacher could ask the writer.\n")
	sb.WriteString("6. Do not rewrite or complete the essay; only scaffold, unless the student explicitly asked for scaffolding.\n\n")
	sb.WriteString("--- ESSAY ---\n")
	sb.WriteString(t.Essay)
	sb.WriteString("\n--- END ESSAY ---")
}

// SearchTask analyzes grounded search results.
type SearchTask struct {
	Query   string
	Results string
}

// NewSearchTask builds the search-and-analyze variant.
func NewSearchTask(query, results string) (SearchTask, error) {
	if strings.TrimSpace(query) == "" {
		return SearchTask{}, fmt.Errorf("search task requires a query")
	}
	return SearchTask{Query: query, Results: results}, nil
}

func (t SearchTask) Kind() string { return "search_and_analyze" }

func (t SearchTask) render(sb *strings.Builder, band rubric.Band) {
	sb.WriteString("--- SEARCH RESULTS ---\n")
	if strings.TrimSpace(t.Results) == "" {
		sb.WriteString("(no results available)\n")
	} else {
		sb.WriteString(t.Results)
		sb.WriteString("\n")
	}
	sb.WriteString("--- END SEARCH RESULTS ---\n\n")
	fmt.Fprintf(sb, "Using the results above, write a %s-appropriate summary answering: %s\n", bandLabel(band), t.Query)
	sb.WriteString("Then add short guidance for a teacher and for a student on how to use these sources well.")
}

// BrowseTask analyzes fetched page content.
type BrowseTask struct {
	URL      string
	PageText string
}

// NewBrowseTask builds the browse-and-analyze variant, truncating oversized
// page text.
func NewBrowseTask(url, pageText string) (BrowseTask, error) {
	if strings.TrimSpace(url) == "" {
		return BrowseTask{}, fmt.Errorf("browse task requires a url")
	}
	if len(pageText) > PageMaxLen {
		pageText = pageText[:PageMaxLen]
	}
	return BrowseTask{URL: url, PageText: pageText}, nil
}

func (t BrowseTask) Kind() string { return "browse_and_analyze" }

func (t BrowseTask) render(sb *strings.Builder, band rubric.Band) {
	fmt.Fprintf(sb, "--- PAGE CONTENT (%s) ---\n", t.URL)
	if strings.TrimSpace(t.PageText) == "" {
		sb.WriteString("(page content unavailable)\n")
	} else {
		sb.WriteString(t.PageText)
		sb.WriteString("\n")
	}
	sb.WriteString("--- END PAGE CONTENT ---\n\n")
	fmt.Fprintf(sb, "Summarize this page for a %s student.\n", bandLabel(band))
	sb.WriteString("Then add short guidance for a teacher and for a student on how to use this source well.")
}

func bandLabel(band rubric.Band) string {
	switch band {
	case rubric.BandElementary:
		return "grade K-5"
	case rubric.BandMiddle:
		return "grade 6-8"
	case rubric.BandHigh:
		return "grade 9-12"
	case rubric.BandAdvanced:
		return "college-preparatory"
	}
	return "general-audience"
}
