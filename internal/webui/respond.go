package webui

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

const maxBodyBytes = 1 * 1024 * 1024

// writeJSON serializes v as the response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("response marshal failed", zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeBackendError maps a backend-client error onto a console status. The
// real error is logged; the client sees only a category.
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	status, msg := backendStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("backend call failed", zap.Error(err))
	}
	s.writeError(w, status, msg)
}

func backendStatus(err error) (int, string) {
	var se *api.StatusError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, api.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, api.ErrUnavailable):
		return http.StatusServiceUnavailable, "backend unavailable"
	case errors.As(err, &se) && se.Status >= 400 && se.Status < 500:
		// Backend rejections such as validation errors pass through with
		// their status and message. 5xx bodies stay server-side.
		msg := se.Message
		if msg == "" {
			msg = "backend rejected request"
		}
		return se.Status, msg
	default:
		return http.StatusBadGateway, "backend error"
	}
}

// readJSON decodes a bounded request body.
func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return sonic.Unmarshal(body, v)
}
