package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/sse"
)

const (
	streamBuffer      = 64
	keepAliveInterval = 25 * time.Second
)

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()
	return flusher, true
}

// streamColiSpace sends a snapshot event followed by live changes.
func (s *Server) streamColiSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	changes := make(chan colispace.ChangeEvent, streamBuffer)
	unsubscribe, err := s.realtime.Subscribe(ctx, id, func(ev colispace.ChangeEvent) {
		select {
		case changes <- ev:
		default:
			s.logger.Warn().Str("coli_space_id", id.String()).Msg("stream too slow, dropping change")
		}
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	defer unsubscribe()

	view, err := s.timelineSvc.Timeline(ctx, id, identityFromContext(ctx))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	snapshot, err := sse.NewMessage("snapshot", view)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	flusher, ok := startStream(w)
	if !ok {
		return
	}
	_, _ = snapshot.WriteTo(w)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case ev := <-changes:
			msg, err := sse.NewMessage(string(ev.Kind), ev)
			if err != nil {
				continue
			}
			if _, err := msg.WriteTo(w); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		case <-s.streamsDone:
			return
		}
	}
}

// streamNotifications pushes the caller's notifications as they are sent.
func (s *Server) streamNotifications(w http.ResponseWriter, r *http.Request) {
	user := authUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth")
		return
	}
	client := sse.NewClient(uuid.NewString(), user.UserID)
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(client.ClientID)

	flusher, ok := startStream(w)
	if !ok {
		return
	}

	ctx := r.Context()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case msg, open := <-client.MessageChan:
			if !open || msg == nil {
				return
			}
			if _, err := msg.WriteTo(w); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		case <-s.streamsDone:
			return
		}
	}
}
