// Package demoapp implements a small, deliberately vulnerable web
// application used only as a scanning target fixture (spec.md §1). Its
// /signup and /profile endpoints accept a JSON body and persist every
// top-level field verbatim, with no allowlist of assignable fields —
// exactly the mass-assignment bug the scanner is built to find.
package demoapp

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the demo app's in-memory user table: email-less, keyed only
// by a generated ID, and holding whatever fields the client submitted.
type Store struct {
	mu    sync.RWMutex
	users map[string]map[string]any
}

// NewStore returns a demo user store holding a single seeded admin
// account, so scans have something to compare reflected fields against.
func NewStore() *Store {
	s := &Store{users: make(map[string]map[string]any)}
	s.users["seed-admin"] = map[string]any{
		"id":      "seed-admin",
		"email":   "admin@example.test",
		"name":    "Seed Admin",
		"isAdmin": true,
		"role":    "admin",
		"credits": float64(1000),
	}
	return s
}

// Router builds the demo app's HTTP routes.
func Router(store *Store) http.Handler {
	r := chi.NewRouter()
	r.Post("/signup", handleSignup(store))
	r.Get("/profile/{id}", handleGetProfile(store))
	r.Put("/profile/{id}", handleUpdateProfile(store))
	return r
}

// handleSignup creates a new user record from the raw submitted JSON
// object, assigning every field the caller sent, then echoes the
// stored record back — the reflection half of the mass-assignment bug.
func handleSignup(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid json body"}`, http.StatusBadRequest)
			return
		}

		id := uuid.New().String()
		body["id"] = id
		if _, ok := body["credits"]; !ok {
			body["credits"] = float64(0)
		}
		if _, ok := body["isAdmin"]; !ok {
			body["isAdmin"] = false
		}
		if _, ok := body["role"]; !ok {
			body["role"] = "user"
		}

		store.mu.Lock()
		store.users[id] = body
		store.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(body)
	}
}

func handleGetProfile(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		store.mu.RLock()
		user, ok := store.users[id]
		store.mu.RUnlock()

		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(user)
	}
}

// handleUpdateProfile merges the submitted fields into the existing
// record with no allowlist — a client that adds "isAdmin": true here
// persists it, which is what the scanner's persistence probe detects.
func handleUpdateProfile(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, `{"error":"invalid json body"}`, http.StatusBadRequest)
			return
		}

		store.mu.Lock()
		user, ok := store.users[id]
		if !ok {
			store.mu.Unlock()
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			user[k] = v
		}
		store.users[id] = user
		store.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(user)
	}
}

// userCount is used only by tests to assert seeding behavior without
// reaching into the store's unexported fields from another package.
func (s *Store) userCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
