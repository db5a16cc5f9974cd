package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/docs"
	"github.com/diptoe/collective-memory-sub000/internal/session"
	"github.com/diptoe/collective-memory-sub000/internal/webui"
)

func main() {
	testClock := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/auth/login" {
			fmt.Fprint(w, `{"token":"tok-login","user":{"user_key":"u1","email":"ada@example.com","display_name":"Ada","role":"admin"}}`)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer backend.Close()

	apiClient, err := api.NewClient(api.Config{BaseURL: backend.URL}, zap.NewNop(), nil)
	if err != nil {
		panic(err)
	}
	store := session.NewMemoryStore()
	now := func() time.Time { return testClock }
	sessions := session.NewManager(store, apiClient.Auth, zap.NewNop(), session.Options{Now: now})
	lib, err := docs.New(zap.NewNop(), "")
	if err != nil {
		panic(err)
	}
	srv, err := webui.New(webui.Options{
		Client:       apiClient,
		Sessions:     sessions,
		Docs:         lib,
		Logger:       zap.NewNop(),
		CSRFKey:      []byte("0123456789abcdef0123456789abcdef"),
		PollInterval: 25 * time.Millisecond,
		RecentLimit:  5,
		Location:     time.UTC,
		Now:          now,
	})
	if err != nil {
		panic(err)
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, CheckRedirect: func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse }}

	res, err := client.Get(ts.URL + "/login")
	if err != nil {
		panic(err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	fmt.Println("GET /login:", res.StatusCode)
	u, _ := url.Parse(ts.URL)
	for _, ck := range jar.Cookies(u) {
		fmt.Println("  jar cookie:", ck.Name, "=", ck.Value[:min(18, len(ck.Value))], "...")
	}
	m := regexp.MustCompile(`name="gorilla\.csrf\.Token" value="([^"]+)"`).FindStringSubmatch(string(body))
	if m == nil {
		fmt.Println("NO csrf token field in login page; body excerpt:")
		fmt.Println(string(body)[:min(600, len(body))])
		return
	}
	fmt.Println("  token:", m[1][:18], "...")

	form := url.Values{}
	form.Set("gorilla.csrf.Token", m[1])
	form.Set("email", "ada@example.com")
	form.Set("password", "secret")
	res2, err := client.PostForm(ts.URL+"/login", form)
	if err != nil {
		panic(err)
	}
	b2, _ := io.ReadAll(res2.Body)
	res2.Body.Close()
	fmt.Println("POST /login:", res2.StatusCode)
	fmt.Println("  body:", string(b2))
	_ = context.Background()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
