package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAnnouncement "github.com/Mr-houngbo/Colit/internal/application/announcement"
	appMatching "github.com/Mr-houngbo/Colit/internal/application/matching"
	appMessaging "github.com/Mr-houngbo/Colit/internal/application/messaging"
	appNotification "github.com/Mr-houngbo/Colit/internal/application/notification"
	"github.com/Mr-houngbo/Colit/internal/application/realtime"
	appTimeline "github.com/Mr-houngbo/Colit/internal/application/timeline"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	announcementSvc *appAnnouncement.Service
	matchingSvc     *appMatching.Service
	timelineSvc     *appTimeline.Service
	messagingSvc    *appMessaging.Service
	notificationSvc *appNotification.Service
	realtime        *realtime.Adapter
	sseHub          *sse.Hub
	auth            AuthConfig
	logger          zerolog.Logger

	streamsDone chan struct{}
	closeOnce   sync.Once
}

func NewServer(
	announcementSvc *appAnnouncement.Service,
	matchingSvc *appMatching.Service,
	timelineSvc *appTimeline.Service,
	messagingSvc *appMessaging.Service,
	notificationSvc *appNotification.Service,
	realtimeAdapter *realtime.Adapter,
	sseHub *sse.Hub,
	auth AuthConfig,
	logger zerolog.Logger,
) *Server {
	return &Server{
		announcementSvc: announcementSvc,
		matchingSvc:     matchingSvc,
		timelineSvc:     timelineSvc,
		messagingSvc:    messagingSvc,
		notificationSvc: notificationSvc,
		realtime:        realtimeAdapter,
		sseHub:          sseHub,
		auth:            auth,
		logger:          logger.With().Str("component", "http").Logger(),
		streamsDone:     make(chan struct{}),
	}
}

// CloseStreams ends every open SSE stream. http.Server.Shutdown waits for
// active requests without cancelling them, so register this with
// RegisterOnShutdown.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() {
		close(s.streamsDone)
	})
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		// streams stay open, so they are kept out of the request timeout
		r.Get("/coli-spaces/{coliSpaceId}/stream", s.streamColiSpace)
		r.Get("/notifications/stream", s.streamNotifications)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/announcements", func(r chi.Router) {
				r.Post("/", s.createAnnouncement)
				r.Get("/", s.listAnnouncements)
				r.Get("/{announcementId}", s.getAnnouncement)
				r.Post("/{announcementId}/respond", s.respondToAnnouncement)
				r.Post("/{announcementId}/deliver", s.markAnnouncementDelivered)
			})

			r.Route("/coli-spaces", func(r chi.Router) {
				r.Get("/", s.listMyColiSpaces)
				r.Get("/{coliSpaceId}", s.getColiSpace)
				r.Post("/{coliSpaceId}/steps/{stepId}/validate", s.validateStep)
				r.Post("/{coliSpaceId}/cancel", s.cancelColiSpace)
				r.Post("/{coliSpaceId}/join", s.joinColiSpace)
				r.Get("/{coliSpaceId}/messages", s.listMessages)
				r.Post("/{coliSpaceId}/messages", s.sendMessage)
				r.Get("/{coliSpaceId}/participants", s.listParticipants)
			})

			r.Get("/notifications", s.listNotifications)
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondServiceError maps domain errors to HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, colispace.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, colispace.ErrSelfMatch):
		status, code = http.StatusBadRequest, "SELF_MATCH"
	case errors.Is(err, colispace.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, colispace.ErrNotParticipant):
		status, code = http.StatusForbidden, "NOT_PARTICIPANT"
	case errors.Is(err, colispace.ErrUnauthorizedStep):
		status, code = http.StatusForbidden, "UNAUTHORIZED_STEP"
	case errors.Is(err, colispace.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, colispace.ErrAlreadyCompleted):
		status, code = http.StatusConflict, "ALREADY_COMPLETED"
	case errors.Is(err, colispace.ErrAwaitingGP):
		status, code = http.StatusConflict, "AWAITING_GP"
	case errors.Is(err, colispace.ErrOutOfOrder):
		status, code = http.StatusConflict, "OUT_OF_ORDER"
	case errors.Is(err, colispace.ErrClosed):
		status, code = http.StatusConflict, "CLOSED"
	case errors.Is(err, colispace.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	respondError(w, status, code, err.Error())
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func chiParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request) (int, int) {
	limit, offset := 0, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	return limit, offset
}
