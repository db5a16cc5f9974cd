package webui

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/docs"
)

// render buffers the template output so an execution error can still become
// a clean 500 instead of half a page.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

type indexData struct {
	User      api.User
	CSRFToken string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.render(w, "index.html", indexData{
		User:      sess.User,
		CSRFToken: csrf.Token(r),
	})
}

type loginData struct {
	CSRFField template.HTML
	Error     string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, "login.html", loginData{
		CSRFField: csrf.TemplateField(r),
		Error:     r.URL.Query().Get("error"),
	})
}

type docsData struct {
	Pages    []docs.Page
	Page     docs.Page
	SignedIn bool
}

func (s *Server) handleDocsIndex(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		http.NotFound(w, r)
		return
	}
	pages := s.docs.List()
	if len(pages) > 0 {
		http.Redirect(w, r, "/docs/"+pages[0].Slug, http.StatusSeeOther)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleDocsPage(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		http.NotFound(w, r)
		return
	}
	page, ok := s.docs.Get(chi.URLParam(r, "slug"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, "docs.html", docsData{
		Pages:    s.docs.List(),
		Page:     page,
		SignedIn: sessionFrom(r.Context()) != nil,
	})
}
