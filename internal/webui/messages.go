package webui

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

const defaultListLimit = 50

func (s *Server) handleMessagesList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultListLimit
	}

	messages, err := s.client.Messages.List(r.Context(), api.MessagesQuery{
		UnreadOnly: q.Get("unread") == "true",
		Limit:      limit,
	})
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if messages == nil {
		messages = []api.Message{}
	}
	s.writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Recipient string `json:"recipient"`
		Subject   string `json:"subject"`
		Body      string `json:"body"`
	}
	if err := readJSON(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	if in.Recipient == "" || in.Body == "" {
		s.writeError(w, http.StatusBadRequest, "recipient and body are required")
		return
	}

	msg, err := s.client.Messages.Send(r.Context(), in.Recipient, in.Subject, in.Body)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMessageRead(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Messages.MarkRead(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleWorkSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultListLimit
	}

	var since time.Time
	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	sessions, err := s.client.WorkSessions.List(r.Context(), since, limit)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if sessions == nil {
		sessions = []api.WorkSession{}
	}
	s.writeJSON(w, http.StatusOK, sessions)
}
