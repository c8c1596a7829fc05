// Package testutil provides testing utilities for the Rick and Morty client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/Sternrassler/rickmorty-client/pkg/model"
)

// CharacterPath is the path the mock serves the character list on.
const CharacterPath = "/api/character"

// MockAPIResponse overrides the response for a single page.
type MockAPIResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockAPI is a paginated character API served from memory.
type MockAPI struct {
	server *httptest.Server

	mu        sync.RWMutex
	pages     [][]model.Character
	overrides map[int]MockAPIResponse

	// Tracking
	RequestCount  int
	LastQuery     map[string]string
	LastUserAgent string
}

// NewMockAPI serves characters split into pages of pageSize.
func NewMockAPI(characters []model.Character, pageSize int) *MockAPI {
	if pageSize <= 0 {
		pageSize = 20
	}

	mock := &MockAPI{
		overrides: make(map[int]MockAPIResponse),
	}
	for start := 0; start < len(characters); start += pageSize {
		end := min(start+pageSize, len(characters))
		mock.pages = append(mock.pages, characters[start:end])
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CharacterPath, mock.handleCharacters)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// CharacterURL returns the list endpoint, usable as a client BaseURL.
func (m *MockAPI) CharacterURL() string {
	return m.server.URL + CharacterPath
}

// PageURL returns the URL of page n (1-based).
func (m *MockAPI) PageURL(n int) string {
	return fmt.Sprintf("%s?page=%d", m.CharacterURL(), n)
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetPageResponse replaces the response for page n.
func (m *MockAPI) SetPageResponse(n int, resp MockAPIResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[n] = resp
}

// ClearPageResponse restores the generated response for page n.
func (m *MockAPI) ClearPageResponse(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, n)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query parameters of the most recent request.
func (m *MockAPI) GetLastQuery() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastUserAgent returns the User-Agent of the most recent request.
func (m *MockAPI) GetLastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastUserAgent
}

func (m *MockAPI) handleCharacters(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastUserAgent = r.Header.Get("User-Agent")
	m.LastQuery = make(map[string]string)
	for key := range r.URL.Query() {
		m.LastQuery[key] = r.URL.Query().Get(key)
	}
	m.mu.Unlock()

	n := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, `{"error":"Invalid page"}`, http.StatusBadRequest)
			return
		}
		n = parsed
	}

	m.mu.RLock()
	override, hasOverride := m.overrides[n]
	m.mu.RUnlock()

	if hasOverride {
		for key, value := range override.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			w.Write([]byte(override.Body))
		}
		return
	}

	m.mu.RLock()
	page, ok := m.buildPage(n)
	m.mu.RUnlock()
	if !ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"There is nothing here"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

// buildPage must be called with m.mu held.
func (m *MockAPI) buildPage(n int) (model.Page, bool) {
	if n < 1 || n > len(m.pages) {
		return model.Page{}, false
	}

	count := 0
	for _, p := range m.pages {
		count += len(p)
	}

	info := &model.PageInfo{
		Count: count,
		Pages: len(m.pages),
	}
	if n < len(m.pages) {
		info.Next = m.PageURL(n + 1)
	}
	if n > 1 {
		info.Prev = m.PageURL(n - 1)
	}

	return model.Page{Info: info, Results: m.pages[n-1]}, true
}

// Characters generates n characters with ids 1..n.
func Characters(n int) []model.Character {
	chars := make([]model.Character, n)
	for i := range chars {
		id := i + 1
		chars[i] = model.Character{
			ID:      id,
			Name:    fmt.Sprintf("Character %d", id),
			Status:  "Alive",
			Species: "Human",
			Episode: []string{fmt.Sprintf("https://rickandmortyapi.com/api/episode/%d", id)},
			URL:     fmt.Sprintf("https://rickandmortyapi.com/api/character/%d", id),
		}
	}
	return chars
}

// Rick returns the canonical first character.
func Rick() model.Character {
	return model.Character{
		ID:      1,
		Name:    "Rick Sanchez",
		Status:  "Alive",
		Species: "Human",
		Gender:  "Male",
		Origin:  &model.Location{Name: "Earth (C-137)", URL: "https://rickandmortyapi.com/api/location/1"},
		Episode: []string{"https://rickandmortyapi.com/api/episode/1"},
		URL:     "https://rickandmortyapi.com/api/character/1",
		Created: "2017-11-04T18:48:46.250Z",
	}
}

// Morty returns the canonical second character.
func Morty() model.Character {
	return model.Character{
		ID:      2,
		Name:    "Morty Smith",
		Status:  "Alive",
		Species: "Human",
		Gender:  "Male",
		Episode: []string{"https://rickandmortyapi.com/api/episode/1"},
		URL:     "https://rickandmortyapi.com/api/character/2",
		Created: "2017-11-04T18:50:21.651Z",
	}
}
