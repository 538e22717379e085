// Package registrytest provides an in-process fake schema registry for
// tests. It speaks just enough of the registry REST protocol to exercise
// clients: GET /schemas/ids/{id} with the subject query parameter, the
// 40403 not-found error body, and a switchable unavailable mode.
package registrytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/typeresolve/typeresolve/schemaregistry"
)

const contentType = "application/vnd.schemaregistry.v1+json"

// Server is a fake schema registry backed by httptest.Server. The zero value
// is not usable; create one with New and shut it down with Close.
type Server struct {
	httpSrv *httptest.Server

	mu          sync.Mutex
	schemas     map[int]schemaregistry.Schema
	requests    int
	subjects    []string
	lastHeader  http.Header
	unavailable bool
}

// New starts a fake registry with no schemas registered.
func New() *Server {
	s := &Server{schemas: map[int]schemaregistry.Schema{}}

	r := chi.NewRouter()
	r.Get("/schemas/ids/{id}", s.handleSchemaByID)
	s.httpSrv = httptest.NewServer(r)

	return s
}

// URL returns the base URL of the fake registry.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// Register makes a schema fetchable by its ID. A schema with an empty Type
// is served without a schemaType field, the way real registries serve
// schemas registered before format tags existed.
func (s *Server) Register(schema schemaregistry.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[schema.ID] = schema
}

// SetUnavailable switches the server between serving schemas and answering
// every request with a 500.
func (s *Server) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

// Requests returns how many schema fetches the server has seen.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Subjects returns the subject query parameter of every fetch seen so far,
// in order. Fetches without the parameter contribute an empty string.
func (s *Server) Subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.subjects))
	copy(out, s.subjects)
	return out
}

// LastHeader returns a copy of the headers of the most recent fetch, or nil
// if none has been seen.
func (s *Server) LastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastHeader == nil {
		return nil
	}
	return s.lastHeader.Clone()
}

// schemaPayload is the wire form of a schema response. schemaType is
// omitted when empty so clients see the legacy Avro shape.
type schemaPayload struct {
	Schema     string                     `json:"schema"`
	SchemaType string                     `json:"schemaType,omitempty"`
	References []schemaregistry.Reference `json:"references,omitempty"`
}

type errorPayload struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

func (s *Server) handleSchemaByID(w http.ResponseWriter, r *http.Request) {
	id, idErr := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	s.requests++
	s.subjects = append(s.subjects, r.URL.Query().Get("subject"))
	s.lastHeader = r.Header.Clone()
	schema, ok := s.schemas[id]
	unavailable := s.unavailable
	s.mu.Unlock()

	w.Header().Set("Content-Type", contentType)

	if unavailable {
		writeJSON(w, http.StatusInternalServerError, errorPayload{
			ErrorCode: 50001,
			Message:   "Store is unavailable",
		})
		return
	}
	if idErr != nil || !ok {
		writeJSON(w, http.StatusNotFound, errorPayload{
			ErrorCode: 40403,
			Message:   fmt.Sprintf("Schema %d not found", id),
		})
		return
	}
	writeJSON(w, http.StatusOK, schemaPayload{
		Schema:     schema.Schema,
		SchemaType: string(schema.Type),
		References: schema.References,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
