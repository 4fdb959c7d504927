package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	appAnnouncement "github.com/Mr-houngbo/Colit/internal/application/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

func (s *Server) createAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req appAnnouncement.CreateInput
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	a, err := s.announcementSvc.Create(r.Context(), identityFromContext(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parseLimitOffset(r)
	filter := announcement.Filter{
		PosterID:      strings.TrimSpace(q.Get("poster")),
		DepartureCity: strings.TrimSpace(q.Get("from")),
		ArrivalCity:   strings.TrimSpace(q.Get("to")),
		Limit:         limit,
		Offset:        offset,
	}
	if v := strings.TrimSpace(q.Get("kind")); v != "" {
		k := announcement.Kind(strings.ToUpper(v))
		filter.Kind = &k
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st := announcement.Status(strings.ToUpper(v))
		filter.Status = &st
	}
	if v := strings.TrimSpace(q.Get("since")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid since")
			return
		}
		filter.Since = &t
	}

	items, err := s.announcementSvc.List(r.Context(), appAnnouncement.Query{
		Filter: filter,
		Where:  q.Get("where"),
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) getAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "announcementId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid announcement id")
		return
	}
	a, err := s.announcementSvc.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

type respondRequest struct {
	ReceiverContact *announcement.ReceiverContact `json:"receiverContact,omitempty"`
}

func (s *Server) respondToAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "announcementId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid announcement id")
		return
	}
	var req respondRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	a, err := s.announcementSvc.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	who := identityFromContext(r.Context())

	var (
		space *colispace.ColiSpace
		isNew bool
	)
	if req.ReceiverContact != nil {
		space, isNew, err = s.matchingSvc.RespondWithReceiver(r.Context(), a, who, *req.ReceiverContact)
	} else {
		space, isNew, err = s.matchingSvc.ResolveOrCreate(r.Context(), a, who.UserID)
	}
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]interface{}{
		"coliSpace": space,
		"isNew":     isNew,
	})
}

func (s *Server) markAnnouncementDelivered(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "announcementId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid announcement id")
		return
	}
	a, err := s.announcementSvc.MarkDelivered(r.Context(), id, identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
