package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"

	"github.com/Hemasri-01/pastebin/cfg"
	"github.com/Hemasri-01/pastebin/pkg/clock"
	"github.com/Hemasri-01/pastebin/pkg/domain"
	"github.com/Hemasri-01/pastebin/svc/svc"
	"github.com/Hemasri-01/pastebin/svc/util"
)

type Hdl struct {
	paste *svc.Paste
	wall  clock.Clock
	cfg   *cfg.Cfg
}

type CreateReq struct {
	Content    string `json:"content"`
	TTLSeconds *int64 `json:"ttl_seconds,omitempty"`
	MaxViews   *int64 `json:"max_views,omitempty"`
}

type CreateResp struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		log.Warn().
			Str("content_type", contentType).
			Str("request_id", requestID).
			Msg("invalid Content-Type header")
		w.WriteHeader(http.StatusUnsupportedMediaType)
		json.NewEncoder(w).Encode(map[string]string{
			"error":      "expected Content-Type: application/json",
			"request_id": requestID,
		})
		return
	}

	limit := h.cfg.MaxPasteSize * 2
	if clHeader := r.Header.Get("Content-Length"); clHeader != "" {
		cl, err := strconv.ParseInt(clHeader, 10, 64)
		if err != nil || cl < 0 {
			log.Warn().Str("content_length", clHeader).Msg("invalid Content-Length")
			writeErr(w, domain.ErrInvalidRequest, requestID)
			return
		}
		if cl > limit {
			log.Warn().Int64("content_length", cl).Msg("Content-Length exceeds maximum")
			writeErr(w, domain.ErrPasteTooLarge, requestID)
			return
		}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	var req CreateReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			log.Warn().Msg("empty request body")
		} else {
			log.Warn().Err(err).Msg("invalid request")
		}
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}

	now := clock.Resolve(r.Context(), h.wall)
	paste, err := h.paste.Create(r.Context(), domain.CreateParams{
		Content:    req.Content,
		TTLSeconds: req.TTLSeconds,
		MaxViews:   req.MaxViews,
		Now:        now,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to create paste")
		writeErr(w, err, requestID)
		return
	}
	log.Info().
		Str("paste_id", paste.ID).
		Bool("has_ttl", paste.ExpiresAt != nil).
		Bool("view_limited", paste.RemainingViews != nil).
		Msg("paste created")
	resp := CreateResp{
		ID:        paste.ID,
		URL:       retrievalURL(r, paste.ID),
		ExpiresAt: paste.ExpiresAt,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// ConsumePaste is the consuming fetch: a success spends one view.
func (h *Hdl) ConsumePaste(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, "consume", h.paste.Consume)
}

// PeekPaste serves display paths; it never charges a view.
func (h *Hdl) PeekPaste(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, "peek", h.paste.Peek)
}

type fetchOp func(ctx context.Context, id string, now time.Time) (*domain.View, error)

func (h *Hdl) fetch(w http.ResponseWriter, r *http.Request, kind string, op fetchOp) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	now := clock.Resolve(r.Context(), h.wall)
	view, err := op(r.Context(), id, now)
	if err != nil {
		// Missing, expired, and exhausted all take this branch with the
		// same body; nothing distinguishes them to the caller.
		if errors.Is(err, domain.ErrPasteNotFound) {
			writeErr(w, domain.ErrPasteNotFound, requestID)
			return
		}
		log.Error().Err(err).Str("paste_id", id).Str("op", kind).Msg("fetch failed")
		writeErr(w, domain.ErrInternalServer, requestID)
		return
	}
	log.Info().
		Str("paste_id", id).
		Str("op", kind).
		Str("client_ip", util.RedactIP(r.RemoteAddr)).
		Msg("paste served")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func retrievalURL(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/api/pastes/" + id
}

func writeErr(w http.ResponseWriter, err error, requestID string) {
	statusCode := domain.Status(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp := domain.ToResp(err)
	if statusCode >= 500 {
		resp = domain.ErrResp{Error: domain.ErrDetail{Code: "INTERNAL_ERROR", Msg: "internal error"}}
		util.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("internal error with detailed info")
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      resp.Error,
		"request_id": requestID,
	})
}
