package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// TestToken is the bearer token the fake backend accepts.
const TestToken = "test-token"

// Route names accepted by FakeBackend.Set and FakeBackend.Count.
const (
	RouteDashboard     = "GET /dashboard"
	RouteAssignment    = "GET /assignments/my"
	RouteFuel          = "GET /fuel/consommations"
	RouteIncidents     = "GET /incidents"
	RouteNotifications = "GET /notifications"
	RouteUnreadCount   = "GET /notifications/unread-count"
	RouteMarkRead      = "PUT /notifications/{id}/read"
	RouteMarkAllRead   = "PUT /notifications/read-all"
)

// Request is one call received by the fake backend.
type Request struct {
	Route     string
	Path      string
	Query     string
	Param     string
	RequestID string
}

type response struct {
	status int
	body   string
}

// FakeBackend is an in-process stand-in for the fleet REST API. Every route
// answers 404 until a response is registered with Set or SetHandler.
type FakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]response
	handlers  map[string]http.HandlerFunc
	requests  []Request
}

// NewFakeBackend starts a fake backend that is shut down when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		responses: make(map[string]response),
		handlers:  make(map[string]http.HandlerFunc),
	}

	r := chi.NewRouter()
	r.Use(requireBearer)
	for _, route := range []string{
		RouteDashboard, RouteAssignment, RouteFuel, RouteIncidents,
		RouteUnreadCount, RouteNotifications, RouteMarkRead, RouteMarkAllRead,
	} {
		method, pattern, _ := strings.Cut(route, " ")
		r.Method(method, pattern, f.serve(route))
	}

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// requireBearer rejects requests without the test token.
func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+TestToken {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeBackend) serve(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Route:     route,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Param:     chi.URLParam(r, "id"),
			RequestID: r.Header.Get("X-Request-ID"),
		})
		h, hasHandler := f.handlers[route]
		resp, hasResponse := f.responses[route]
		f.mu.Unlock()

		if hasHandler {
			h(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !hasResponse {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}
}

// Set registers a fixed status and JSON body for route.
func (f *FakeBackend) Set(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, route)
	f.responses[route] = response{status: status, body: body}
}

// SetHandler registers a custom handler for route.
func (f *FakeBackend) SetHandler(route string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[route] = h
}

// Requests returns a copy of every request received so far.
func (f *FakeBackend) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count returns how many requests hit route.
func (f *FakeBackend) Count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Route == route {
			n++
		}
	}
	return n
}
