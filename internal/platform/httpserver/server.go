package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpadapter "github.com/ngotraders/kopitra/internal/gateway/adapters/http"
	gatewayerrors "github.com/ngotraders/kopitra/internal/gateway/domain/errors"
	httptransport "github.com/ngotraders/kopitra/internal/gateway/transport/http"
)

// validate is built once: validator.New reflects over struct tags on first
// use per type and caches the result, so a shared instance is both safe for
// concurrent use and the idiomatic way to avoid paying that cost per request.
var validate = validator.New()

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	httpServer *http.Server
	handler    httpadapter.Handler
	gatherer   prometheus.Gatherer
}

func New(handler httpadapter.Handler, logger *slog.Logger, addr string, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		handler:  handler,
		gatherer: gatherer,
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /sessions/current", s.handleDeleteSession)
	s.mux.HandleFunc("POST /sessions/current/inbox", s.handleIngestInbox)
	s.mux.HandleFunc("GET /sessions/current/outbox", s.handleFetchOutbox)
	s.mux.HandleFunc("POST /sessions/current/outbox/{eventId}/ack", s.handleAcknowledgeOutbox)
	s.mux.HandleFunc("POST /sessions/{sessionId}/approve", s.handleApproveSession)
	s.mux.HandleFunc("POST /sessions/{sessionId}/outbox", s.handleQueueOutboxEvent)

	s.mux.HandleFunc("GET /sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /sessions/{sessionId}/preapproval", s.handlePreapprovalStatus)
	s.mux.HandleFunc("POST /preapprovals", s.handlePreapproveSessionKey)
}

func (s *Server) handlePreapproveSessionKey(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	var req httptransport.PreapproveSessionKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.handler.PreapproveSessionKeyHandler(r.Context(), account, req); err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	var req httptransport.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.handler.CreateSessionHandler(r.Context(), account, idempotencyKey, req)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	token, err := bearerToken(r)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}

	if err := s.handler.DeleteSessionHandler(r.Context(), account, token, idempotencyKey); err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngestInbox(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	token, err := bearerToken(r)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	var req httptransport.IngestInboxRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.handler.IngestInboxHandler(r.Context(), account, token, idempotencyKey, req)
	if err != nil {
		// SessionTerminated maps to 403 here: a terminated session's inbox
		// writes are rejected as unauthenticated, not as a write conflict.
		writeGatewayError(w, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleFetchOutbox(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	token, err := bearerToken(r)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	cursor, err := parseCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_cursor", err.Error())
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	resp, err := s.handler.FetchOutboxHandler(r.Context(), account, token, cursor, limit)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAcknowledgeOutbox(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	token, err := bearerToken(r)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	eventID := r.PathValue("eventId")

	resp, err := s.handler.AcknowledgeOutboxHandler(r.Context(), account, token, eventID, idempotencyKey)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApproveSession(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("sessionId")
	var req httptransport.ApproveSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.handler.ApproveSessionHandler(r.Context(), account, sessionID, idempotencyKey, req)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueueOutboxEvent(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("sessionId")
	var req httptransport.QueueOutboxEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.handler.QueueOutboxEventHandler(r.Context(), account, sessionID, idempotencyKey, req)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	resp, err := s.handler.ListSessionsHandler(r.Context(), account)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreapprovalStatus(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("sessionId")
	fingerprint := strings.TrimSpace(r.URL.Query().Get("fingerprint"))
	if fingerprint == "" {
		writeError(w, http.StatusBadRequest, "fingerprint_required", "fingerprint query parameter is required")
		return
	}
	_ = sessionID // the lookup is keyed by (account, fingerprint); sessionId is path-conventional only

	resp, err := s.handler.PreapprovalStatusHandler(r.Context(), account, fingerprint)
	if err != nil {
		writeGatewayError(w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.Header.Get("X-TradeAgent-Account")
	account := strings.TrimSpace(raw)
	if account == "" {
		writeGatewayError(w, gatewayerrors.ErrMissingAccountHeader, http.StatusConflict)
		return "", false
	}
	if !isValidUTF8Header(raw) {
		writeGatewayError(w, gatewayerrors.ErrInvalidHeaderEncoding, http.StatusConflict)
		return "", false
	}
	return account, true
}

func requireIdempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		writeGatewayError(w, gatewayerrors.ErrMissingIdempotencyKey, http.StatusConflict)
		return "", false
	}
	return key, true
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", gatewayerrors.ErrEmptyHeaderValue
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", gatewayerrors.ErrInvalidAuthorizationScheme
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", gatewayerrors.ErrEmptyHeaderValue
	}
	return token, nil
}

func isValidUTF8Header(v string) bool {
	for _, r := range v {
		if r == '�' {
			return false
		}
	}
	return true
}

func parseCursor(raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, httptransport.ErrorResponse{Code: code, Message: message})
}

// writeGatewayError maps a domain sentinel to its HTTP status per the
// error-kind table, except ErrSessionTerminated: its status is
// context-dependent (403 on the inbox write path, 409 everywhere else a
// caller mutates a terminated session), so the call site supplies it via
// terminatedStatus.
func writeGatewayError(w http.ResponseWriter, err error, terminatedStatus int) {
	switch {
	case errors.Is(err, gatewayerrors.ErrMissingAccountHeader):
		writeError(w, http.StatusBadRequest, "missing_account_header", err.Error())
	case errors.Is(err, gatewayerrors.ErrMissingIdempotencyKey):
		writeError(w, http.StatusBadRequest, "missing_idempotency_key", err.Error())
	case errors.Is(err, gatewayerrors.ErrInvalidAuthorizationScheme):
		writeError(w, http.StatusBadRequest, "invalid_authorization_scheme", err.Error())
	case errors.Is(err, gatewayerrors.ErrInvalidHeaderEncoding):
		writeError(w, http.StatusBadRequest, "invalid_header_encoding", err.Error())
	case errors.Is(err, gatewayerrors.ErrEmptyHeaderValue):
		writeError(w, http.StatusBadRequest, "empty_header_value", err.Error())
	case errors.Is(err, gatewayerrors.ErrAuthenticationKeyEmpty):
		writeError(w, http.StatusBadRequest, "authentication_key_empty", err.Error())
	case errors.Is(err, gatewayerrors.ErrEventTypeEmpty):
		writeError(w, http.StatusBadRequest, "event_type_empty", err.Error())
	case errors.Is(err, gatewayerrors.ErrPositionIDRequired):
		writeError(w, http.StatusBadRequest, "position_id_required", err.Error())
	case errors.Is(err, gatewayerrors.ErrSessionMissing):
		writeError(w, http.StatusUnauthorized, "session_missing", err.Error())
	case errors.Is(err, gatewayerrors.ErrInvalidSessionToken):
		writeError(w, http.StatusUnauthorized, "invalid_session_token", err.Error())
	case errors.Is(err, gatewayerrors.ErrAuthenticationFailed):
		writeError(w, http.StatusForbidden, "authentication_failed", err.Error())
	case errors.Is(err, gatewayerrors.ErrSessionTerminated):
		writeError(w, terminatedStatus, "session_terminated", err.Error())
	case errors.Is(err, gatewayerrors.ErrSessionMismatch):
		writeError(w, http.StatusConflict, "session_mismatch", err.Error())
	case errors.Is(err, gatewayerrors.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event_not_found", err.Error())
	case errors.Is(err, gatewayerrors.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
