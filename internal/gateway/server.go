package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halvden/opsgate/internal/agent"
	"github.com/halvden/opsgate/internal/config"
	"github.com/halvden/opsgate/internal/version"
)

// Processor handles gated queries and their follow-up replies.
type Processor interface {
	Query(ctx context.Context, query, conversationID string) (*agent.Response, error)
	Followup(ctx context.Context, conversationID, reply string) (*agent.Response, error)
}

type Server struct {
	cfg        config.GatewayConfig
	processor  Processor
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, processor Processor) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18890
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:       cfg,
		processor: processor,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	mux := NewHandler(s.cfg.Token, s.processor)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func NewHandler(token string, processor Processor) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if strings.TrimSpace(token) != "" && !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			Query          string `json:"query"`
			ConversationID string `json:"conversation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		query := strings.TrimSpace(req.Query)
		if query == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "query is required")
			return
		}

		if processor == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "query processor is not configured")
			return
		}

		resp, err := processor.Query(r.Context(), query, strings.TrimSpace(req.ConversationID))
		if err != nil {
			slog.Error("gateway query failed", "request_id", requestID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process query")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response":   resp,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/followup", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if strings.TrimSpace(token) != "" && !isAuthorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			ConversationID string `json:"conversation_id"`
			Reply          string `json:"reply"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		conversationID := strings.TrimSpace(req.ConversationID)
		if conversationID == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "conversation_id is required")
			return
		}
		reply := strings.TrimSpace(req.Reply)
		if reply == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "reply is required")
			return
		}

		if processor == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "query processor is not configured")
			return
		}

		resp, err := processor.Followup(r.Context(), conversationID, reply)
		if err != nil {
			slog.Error("gateway followup failed", "request_id", requestID, "conversation_id", conversationID, "error", err)
			if errors.Is(err, agent.ErrNoPending) {
				writeError(w, requestID, http.StatusNotFound, "no_pending_request", "no pending request for this conversation")
				return
			}
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process followup")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response":   resp,
			"request_id": requestID,
		})
	})
	return mux
}

func isAuthorized(r *http.Request, expected string) bool {
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
