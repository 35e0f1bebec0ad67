// Package handler exposes the session lifecycle over HTTP: login, refresh,
// logout, and the authenticated user surface.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	activityrepo "authgate/internal/activity/repository"
	"authgate/internal/auth/service"
	devicerepo "authgate/internal/device/repository"
	"authgate/internal/policy"
	"authgate/internal/server/middleware"
	"authgate/internal/store"
)

const maxBodyBytes = 1 << 16

// Handler wires the HTTP auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	svc      *service.Service
	activity *activityrepo.Repository
	devices  *devicerepo.Repository
	access   *policy.Evaluator
	metrics  *Metrics
	clock    func() time.Time
}

// New constructs a Handler. activity, devices, and access guard the
// authenticated surface; metrics may be nil.
func New(
	log *slog.Logger,
	svc *service.Service,
	activity *activityrepo.Repository,
	devices *devicerepo.Repository,
	access *policy.Evaluator,
	metrics *Metrics,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		svc:      svc,
		activity: activity,
		devices:  devices,
		access:   access,
		metrics:  metrics,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Register wires the auth routes onto mux. authn guards the authenticated
// endpoints and attaches the actor identity to the request context.
func (h *Handler) Register(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/refresh", h.handleRefresh)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.Handle("/me", authn(http.HandlerFunc(h.handleMe)))
	mux.Handle("/activity", authn(http.HandlerFunc(h.handleActivity)))
	mux.Handle("/admin/purge", authn(middleware.RequireAction(h.access, policy.ActionDevicePurge, http.HandlerFunc(h.handlePurge))))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Username, req.Password, r.UserAgent())
	if err != nil {
		h.metrics.CountLogin(r.Context(), loginOutcome(err))
		h.writeAuthError(w, err)
		return
	}
	h.metrics.CountLogin(r.Context(), "success")

	setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	h.log.Info("login succeeded", "username", req.Username)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: res.AccessToken})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	res, err := h.svc.Refresh(r.Context(), refreshTokenFromCookie(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	if res.Rotated {
		h.metrics.CountRotation(r.Context())
		setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: res.AccessToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// Always succeeds; never leaks whether a session existed.
	_ = h.svc.Logout(r.Context(), refreshTokenFromCookie(r))
	expireRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := store.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	h.recordActivity(r.Context(), "me.read", "")
	writeJSON(w, http.StatusOK, map[string]string{"userId": id.Subject, "role": id.Role})
}

type activityEntry struct {
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := h.activity.ListForActor(r.Context())
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	out := make([]activityEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, activityEntry{Action: rec.Action, Detail: rec.Detail, At: rec.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n, err := h.devices.PurgeExpired(r.Context(), h.clock())
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.recordActivity(r.Context(), "device.purge", "")
	h.log.Info("purged expired devices", "count", n)
	writeJSON(w, http.StatusOK, map[string]int64{"purged": n})
}

// recordActivity is best-effort; a failed trail write never fails the
// request it describes.
func (h *Handler) recordActivity(ctx context.Context, action, detail string) {
	if h.activity == nil {
		return
	}
	if err := h.activity.Record(ctx, action, detail); err != nil {
		h.log.Warn("activity record failed", "action", action, "err", err)
	}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	case errors.Is(err, service.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, "missing_token", "missing refresh token")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid refresh token")
	case errors.Is(err, service.ErrExpiredToken):
		writeError(w, http.StatusUnauthorized, "expired_token", "refresh token expired")
	case errors.Is(err, service.ErrOrphanedDevice):
		writeError(w, http.StatusUnauthorized, "invalid_device", "invalid device")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "failed to reach the store")
	default:
		h.log.Error("unexpected auth error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		return "throttled"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid"
	case errors.Is(err, store.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
