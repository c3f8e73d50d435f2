package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/opsdesk-ai/opsdesk/internal/config"
	"github.com/opsdesk-ai/opsdesk/internal/observability"
	"github.com/opsdesk-ai/opsdesk/internal/orchestrator"
	"github.com/opsdesk-ai/opsdesk/internal/report"
	"github.com/opsdesk-ai/opsdesk/internal/session"
)

type Server struct {
	cfg      config.Config
	svc      *orchestrator.Service
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, svc *orchestrator.Service, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// often omit Origin; allow them.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Get("/v1/session/{key}/history", s.handleHistory)
	r.Post("/v1/session/{key}/clear", s.handleClear)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"ledger_mode":    s.cfg.LedgerMode,
		"messaging_mode": s.cfg.MessagingMode,
	})
}

type chatRequest struct {
	SessionKey string `json:"session_key,omitempty"`
	Text       string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.svc.Handle(r.Context(), req.SessionKey, req.Text, nil)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyRequest) {
			respondError(w, http.StatusBadRequest, "empty_request", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if strings.TrimSpace(key) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_key", "missing session key")
		return
	}
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	turns := s.svc.History(key, limit)
	if turns == nil {
		turns = []session.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_key": key,
		"turns":       turns,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if strings.TrimSpace(key) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_key", "missing session key")
		return
	}
	if err := s.svc.Clear(key); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "cleared", "session_key": key})
}

type wsRequest struct {
	SessionKey string `json:"session_key,omitempty"`
	Text       string `json:"text"`
}

type wsEvent struct {
	Type   string               `json:"type"`
	Block  *report.Block        `json:"block,omitempty"`
	Result *orchestrator.Result `json:"result,omitempty"`
	Code   string               `json:"code,omitempty"`
	Detail string               `json:"detail,omitempty"`
}

// handleChatWS streams report blocks as they are produced, followed by the
// final result, one request at a time per connection. Writes go through a
// single writer goroutine; block events are dropped when the outbound queue
// is saturated, the final result is never dropped.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.countWS("event", "connected")

	ctx := r.Context()
	outbound := make(chan wsEvent, 256)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
				s.countWS("outbound", ev.Type)
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.queue(outbound, wsEvent{Type: "error", Code: "invalid_client_message", Detail: err.Error()})
			continue
		}
		s.countWS("inbound", "request")

		res, err := s.svc.Handle(ctx, req.SessionKey, req.Text, func(b report.Block) {
			s.queue(outbound, wsEvent{Type: "block", Block: &b})
		})
		if err != nil {
			s.queue(outbound, wsEvent{Type: "error", Code: "request_failed", Detail: err.Error()})
			continue
		}

		select {
		case outbound <- wsEvent{Type: "result", Result: &res}:
		case <-ctx.Done():
		}
	}

	close(outbound)
	<-writerDone
	s.countWS("event", "disconnected")
}

func (s *Server) queue(outbound chan<- wsEvent, ev wsEvent) {
	select {
	case outbound <- ev:
	default:
		// Keep websocket writes single-threaded; drop if the queue is full.
		s.countWS("outbound", "drop_full")
	}
}

func (s *Server) countWS(direction, kind string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, kind).Inc()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
