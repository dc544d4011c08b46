package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/brandwell/dispatch/internal/outbox"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{}

	for name, ping := range s.deps.Health {
		if err := ping(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if !s.cronAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid cron secret")
		return
	}

	summary := s.deps.Runner.Trigger(r.Context())
	writeJSON(w, http.StatusOK, summary)
}

type enqueueRequest struct {
	OwnerID      string         `json:"ownerId"`
	BrandID      string         `json:"brandId"`
	Type         string         `json:"type"`
	Payload      map[string]any `json:"payload"`
	ScheduledFor string         `json:"scheduledFor,omitempty"`
}

var actionTypes = map[outbox.ActionType]bool{
	outbox.ActionPostPublish: true,
	outbox.ActionSmsSend:     true,
	outbox.ActionGbpPost:     true,
	outbox.ActionEmailSend:   true,
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OwnerID == "" || req.BrandID == "" {
		writeError(w, http.StatusBadRequest, "ownerId and brandId are required")
		return
	}
	if !actionTypes[outbox.ActionType(req.Type)] {
		writeError(w, http.StatusBadRequest, "unknown action type: "+req.Type)
		return
	}

	scheduledFor, err := parseTimestamp(req.ScheduledFor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "scheduledFor must be RFC 3339")
		return
	}

	rec := &outbox.Record{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		BrandID:      req.BrandID,
		Type:         outbox.ActionType(req.Type),
		Payload:      req.Payload,
		Status:       outbox.StatusQueued,
		ScheduledFor: scheduledFor,
		CreatedAt:    s.deps.Clock.Now().UTC(),
	}

	if err := s.deps.Store.Enqueue(r.Context(), rec); err != nil {
		s.deps.Logger.Error().Err(err).Msg("enqueue outbox record")
		writeError(w, http.StatusInternalServerError, "could not enqueue record")
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ownerID := q.Get("ownerId")
	brandID := q.Get("brandId")
	if ownerID == "" || brandID == "" {
		writeError(w, http.StatusBadRequest, "ownerId and brandId are required")
		return
	}

	filter := outbox.ListFilter{
		OwnerID: ownerID,
		BrandID: brandID,
		Status:  outbox.Status(q.Get("status")),
		Limit:   defaultListLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		filter.Limit = n
	}

	records, err := s.deps.Store.List(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("list outbox records")
		writeError(w, http.StatusInternalServerError, "could not list records")
		return
	}
	if records == nil {
		records = []outbox.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleGoogleConnect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	brandID := q.Get("brandId")
	if userID == "" || brandID == "" {
		writeError(w, http.StatusBadRequest, "userId and brandId are required")
		return
	}

	authorizeURL, err := s.deps.Connect.BuildAuthorizeURL(userID, brandID)
	if err != nil {
		s.deps.Logger.Error().Err(err).Msg("build google authorize url")
		writeError(w, http.StatusInternalServerError, "could not start authorization")
		return
	}

	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// handleGoogleCallback never echoes verification internals back to the
// caller; failures all collapse to the same denial and the detail goes to
// the log.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	stateToken := q.Get("state")
	if code == "" || stateToken == "" {
		writeError(w, http.StatusBadRequest, "authorization failed")
		return
	}

	state, err := s.deps.Connect.CompleteAuthorization(r.Context(), code, stateToken)
	if err != nil {
		s.deps.Logger.Warn().Err(err).Msg("google authorization callback rejected")
		writeError(w, http.StatusBadRequest, "authorization failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connected": true,
		"userId":    state.UserID,
		"brandId":   state.BrandID,
	})
}

type bufferConnectRequest struct {
	OwnerID     string `json:"ownerId"`
	BrandID     string `json:"brandId"`
	AccessToken string `json:"accessToken"`
}

func (s *Server) handleBufferConnect(w http.ResponseWriter, r *http.Request) {
	var req bufferConnectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" || req.BrandID == "" {
		writeError(w, http.StatusBadRequest, "ownerId and brandId are required")
		return
	}

	if err := s.deps.Connect.ConnectBuffer(r.Context(), req.OwnerID, req.BrandID, req.AccessToken); err != nil {
		s.deps.Logger.Warn().Err(err).Msg("buffer connect rejected")
		writeError(w, http.StatusBadRequest, "could not connect buffer account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"connected": true})
}
