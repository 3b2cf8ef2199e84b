// Package server exposes the HTTP surface: one POST endpoint running the
// request pipeline and a GET health endpoint reporting collaborator
// availability. Refusals are normal 200 responses; only unanticipated
// faults become 500s.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tutorgate/internal/pipeline"
)

// Capabilities reports which optional collaborators are live. Probed once
// at startup; presence is a runtime capability, not a compile-time branch.
type Capabilities struct {
	LLM     bool `json:"llm"`
	Search  bool `json:"search"`
	Store   bool `json:"store"`
	Browser bool `json:"browser"`
}

// Server is the HTTP front end.
type Server struct {
	orch   *pipeline.Orchestrator
	caps   Capabilities
	logger *zap.Logger
	http   *http.Server
}

// New constructs the server.
func New(addr string, orch *pipeline.Orchestrator, caps Capabilities, logger *zap.Logger) *Server {
	s := &Server{orch: orch, caps: caps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/assist", s.withRecovery(s.handleAssist))
	mux.HandleFunc("/health", s.withRecovery(s.handleHealth))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe runs the server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// flexBool accepts JSON booleans, truthy strings, and numbers, matching the
// permissive override flags on the request surface.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = flexBool(t)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			*f = true
		default:
			*f = false
		}
	case float64:
		*f = t != 0
	default:
		*f = false
	}
	return nil
}

// assistRequest is the inbound JSON body. Aliased fields (userId/user,
// grade/gradeLevel) are reconciled after decode.
type assistRequest struct {
	UserID         string   `json:"userId"`
	User           string   `json:"user"`
	Action         string   `json:"action"`
	Message        string   `json:"message"`
	Essay          string   `json:"essay"`
	Grade          string   `json:"grade"`
	GradeLevel     string   `json:"gradeLevel"`
	URL            string   `json:"url"`
	SearchQuery    string   `json:"searchQuery"`
	Cookies        string   `json:"cookies"`
	UseBraveSearch flexBool `json:"useBraveSearch"`
	UseReasoning   flexBool `json:"useReasoning"`
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body assistRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	reqID := uuid.NewString()
	start := time.Now()

	req := pipeline.Request{
		UserID:       firstNonEmpty(body.UserID, body.User),
		Action:       body.Action,
		Message:      body.Message,
		Essay:        body.Essay,
		Grade:        firstNonEmpty(body.Grade, body.GradeLevel),
		URL:          body.URL,
		SearchQuery:  body.SearchQuery,
		Cookies:      body.Cookies,
		UseSearch:    bool(body.UseBraveSearch),
		UseReasoning: bool(body.UseReasoning),
	}

	resp := s.orch.Handle(r.Context(), req)

	s.logger.Info("assist",
		zap.String("req", reqID),
		zap.String("action", req.Action),
		zap.Bool("refused", resp.Refused),
		zap.Bool("usedSearch", resp.UsedSearch),
		zap.Bool("usedReasoning", resp.UsedReasoning),
		zap.Bool("fromCache", resp.FromCache),
		zap.Duration("took", time.Since(start)))

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.caps)
}

// withRecovery converts panics from malformed input or collaborator bugs
// into logged 500s so one request cannot take the process down.
func (s *Server) withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": fmt.Sprintf("internal error: %v", rec),
				})
			}
		}()
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
