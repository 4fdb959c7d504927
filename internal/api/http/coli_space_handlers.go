package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

func (s *Server) coliSpaceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := parseUUIDParam(r, "coliSpaceId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid coli space id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) listMyColiSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.matchingSvc.Mine(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": spaces})
}

func (s *Server) getColiSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	view, err := s.timelineSvc.Timeline(r.Context(), id, identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) validateStep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	stepID := colispace.StepID(strings.TrimSpace(chiParam(r, "stepId")))
	res, err := s.timelineSvc.Validate(r.Context(), id, stepID, identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) cancelColiSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	space, err := s.timelineSvc.Cancel(r.Context(), id, identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, space)
}

func (s *Server) joinColiSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	space, err := s.messagingSvc.JoinAsReceiver(r.Context(), id, identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, space)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	msgs, err := s.messagingSvc.ListMessages(r.Context(), id, identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": msgs})
}

type sendMessageRequest struct {
	Text        string   `json:"text"`
	Attachments []string `json:"attachments,omitempty"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	msg, err := s.messagingSvc.SendMessage(r.Context(), id, identityFromContext(r.Context()), req.Text, req.Attachments)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := s.coliSpaceID(w, r)
	if !ok {
		return
	}
	people, err := s.messagingSvc.Participants(r.Context(), id, identityFromContext(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": people})
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := parseLimitOffset(r)
	items, err := s.notificationSvc.ListForRecipient(r.Context(), identityFromContext(r.Context()).UserID, limit)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}
