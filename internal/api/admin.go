package api

import (
	"context"
	"net/http"
	"net/url"
)

// resource is the shared CRUD accessor behind the admin services. The admin
// screens are thin proxies; anything beyond shape-checking belongs to the
// backend, so one generic implementation covers all of them.
type resource[T any] struct {
	c    *Client
	name string // op label prefix, e.g. "users"
	path string // collection path, e.g. "/v1/users"
}

// List returns the full collection visible to the calling tenant.
func (r *resource[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := r.c.do(ctx, r.name+".list", http.MethodGet, r.path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one record by key.
func (r *resource[T]) Get(ctx context.Context, key string) (*T, error) {
	var out T
	if err := r.c.do(ctx, r.name+".get", http.MethodGet, r.path+"/"+url.PathEscape(key), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts a new record and returns the backend's version of it.
func (r *resource[T]) Create(ctx context.Context, in any) (*T, error) {
	var out T
	if err := r.c.do(ctx, r.name+".create", http.MethodPost, r.path, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces a record by key and returns the stored version.
func (r *resource[T]) Update(ctx context.Context, key string, in any) (*T, error) {
	var out T
	if err := r.c.do(ctx, r.name+".update", http.MethodPut, r.path+"/"+url.PathEscape(key), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a record by key.
func (r *resource[T]) Delete(ctx context.Context, key string) error {
	return r.c.do(ctx, r.name+".delete", http.MethodDelete, r.path+"/"+url.PathEscape(key), nil, nil, nil)
}

// UsersService manages platform accounts.
type UsersService struct{ resource[User] }

// TeamsService manages tenant teams.
type TeamsService struct{ resource[Team] }

// ClientsService manages tenants.
type ClientsService struct{ resource[ClientAccount] }

// PersonasService manages agent personas.
type PersonasService struct{ resource[Persona] }

// SessionsService lists and revokes agent sessions. The backend rejects
// writes other than delete; the console never issues them.
type SessionsService struct{ resource[AgentSession] }

func newAdminServices(c *Client) {
	c.Users = &UsersService{resource[User]{c: c, name: "users", path: "/v1/users"}}
	c.Teams = &TeamsService{resource[Team]{c: c, name: "teams", path: "/v1/teams"}}
	c.Clients = &ClientsService{resource[ClientAccount]{c: c, name: "clients", path: "/v1/clients"}}
	c.Personas = &PersonasService{resource[Persona]{c: c, name: "personas", path: "/v1/personas"}}
	c.Sessions = &SessionsService{resource[AgentSession]{c: c, name: "sessions", path: "/v1/sessions"}}
}
