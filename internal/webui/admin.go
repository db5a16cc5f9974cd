package webui

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// crudService is the slice of a typed backend resource the proxies need.
// The admin services all satisfy it.
type crudService[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, key string) (*T, error)
	Create(ctx context.Context, in any) (*T, error)
	Update(ctx context.Context, key string, in any) (*T, error)
	Delete(ctx context.Context, key string) error
}

// mountCRUD registers the standard five routes for one backend resource.
// The handlers are deliberately thin: decode, forward, re-encode. Anything
// smarter belongs to the backend, which owns validation and tenancy.
func mountCRUD[T any](s *Server, r chi.Router, path string, svc crudService[T]) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			items, err := svc.List(req.Context())
			if err != nil {
				s.writeBackendError(w, err)
				return
			}
			if items == nil {
				items = []T{}
			}
			s.writeJSON(w, http.StatusOK, items)
		})

		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			body, ok := s.readShape(w, req)
			if !ok {
				return
			}
			item, err := svc.Create(req.Context(), body)
			if err != nil {
				s.writeBackendError(w, err)
				return
			}
			s.writeJSON(w, http.StatusCreated, item)
		})

		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				item, err := svc.Get(req.Context(), chi.URLParam(req, "key"))
				if err != nil {
					s.writeBackendError(w, err)
					return
				}
				s.writeJSON(w, http.StatusOK, item)
			})

			r.Put("/", func(w http.ResponseWriter, req *http.Request) {
				body, ok := s.readShape(w, req)
				if !ok {
					return
				}
				item, err := svc.Update(req.Context(), chi.URLParam(req, "key"), body)
				if err != nil {
					s.writeBackendError(w, err)
					return
				}
				s.writeJSON(w, http.StatusOK, item)
			})

			r.Delete("/", func(w http.ResponseWriter, req *http.Request) {
				if err := svc.Delete(req.Context(), chi.URLParam(req, "key")); err != nil {
					s.writeBackendError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})
}

// readShape decodes a request body to a generic object, which is the only
// validation the proxies do.
func (s *Server) readShape(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return nil, false
	}
	return body, true
}
