package testhelper

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Edge is an edge served by the fake platform.
type Edge struct {
	Head   string
	Tail   string
	Weight float64
}

// Profile is a profile served by the fake platform.
type Profile struct {
	PreferredEmail  string
	EmailsConfirmed []string
	Emails          []string
}

// Platform is an in-memory review platform API served over httptest. Notes
// are stored as raw JSON-able maps so tests can use either API version's
// content shape.
type Platform struct {
	Username string
	Password string
	Token    string

	Groups   map[string][]string
	Edges    map[string][]Edge
	Notes    map[string][]map[string]any
	Profiles map[string]Profile

	server   *httptest.Server
	mu       sync.Mutex
	requests []string
	failures map[string]int
}

// NewPlatform starts a fake platform. Close it with t.Cleanup(p.Close).
func NewPlatform() *Platform {
	p := &Platform{
		Username: "chair@example.org",
		Password: "secret",
		Token:    "test-token",
		Groups:   make(map[string][]string),
		Edges:    make(map[string][]Edge),
		Notes:    make(map[string][]map[string]any),
		Profiles: make(map[string]Profile),
		failures: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", p.login)
	mux.HandleFunc("/groups", p.authorized(p.groups))
	mux.HandleFunc("/edges", p.authorized(p.edges))
	mux.HandleFunc("/notes", p.authorized(p.notes))
	mux.HandleFunc("/profiles", p.authorized(p.profiles))

	p.server = httptest.NewServer(p.record(mux))
	return p
}

// URL returns the base URL of the fake API.
func (p *Platform) URL() string {
	return p.server.URL
}

func (p *Platform) Close() {
	p.server.Close()
}

// FailNext makes the next n requests to path answer 503.
func (p *Platform) FailNext(path string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[path] = n
}

// Requests returns the paths requested so far, in order.
func (p *Platform) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// RequestCount returns how many requests hit path.
func (p *Platform) RequestCount(path string) int {
	count := 0
	for _, r := range p.Requests() {
		if r == path {
			count++
		}
	}
	return count
}

func (p *Platform) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests = append(p.requests, r.URL.Path)
		fail := p.failures[r.URL.Path] > 0
		if fail {
			p.failures[r.URL.Path]--
		}
		p.mu.Unlock()

		if fail {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "Service Unavailable"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (p *Platform) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p.Token != "" && r.Header.Get("Authorization") != "Bearer "+p.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid token"})
			return
		}
		next(w, r)
	}
}

func (p *Platform) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"message": "method not allowed"})
		return
	}

	var body struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad request"})
		return
	}

	if body.ID != p.Username || body.Password != p.Password {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid username or password"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": p.Token})
}

func (p *Platform) groups(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	members, ok := p.Groups[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"name": "NotFoundError", "message": "Group Not Found: " + id})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups": []map[string]any{{"id": id, "members": members}},
	})
}

func (p *Platform) edges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	invitation := q.Get("invitation")

	matched := []map[string]any{}
	for i, e := range p.Edges[invitation] {
		if head := q.Get("head"); head != "" && head != e.Head {
			continue
		}
		if tail := q.Get("tail"); tail != "" && tail != e.Tail {
			continue
		}
		matched = append(matched, map[string]any{
			"id":         invitation + "/" + strconv.Itoa(i),
			"invitation": invitation,
			"head":       e.Head,
			"tail":       e.Tail,
			"weight":     e.Weight,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"edges": page(matched, q.Get("offset"), q.Get("limit"))})
}

func (p *Platform) notes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notes := p.Notes[q.Get("invitation")]
	if notes == nil {
		notes = []map[string]any{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"notes": page(notes, q.Get("offset"), q.Get("limit"))})
}

func (p *Platform) profiles(w http.ResponseWriter, r *http.Request) {
	found := []map[string]any{}
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		profile, ok := p.Profiles[id]
		if !ok {
			continue
		}
		found = append(found, map[string]any{
			"id": id,
			"content": map[string]any{
				"preferredEmail":  profile.PreferredEmail,
				"emailsConfirmed": profile.EmailsConfirmed,
				"emails":          profile.Emails,
			},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"profiles": found})
}

func page[T any](items []T, offsetParam, limitParam string) []T {
	offset, _ := strconv.Atoi(offsetParam)
	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit <= 0 {
		limit = len(items)
	}

	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
