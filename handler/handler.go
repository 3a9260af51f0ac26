// Package handler provides the HTTP handlers for the record server.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stevemurr/simple-record-server/record"
)

// Options configures the parts of the router that are not record
// operations.
type Options struct {
	// StaticDir is served for GET requests no route claims. Empty disables
	// static serving.
	StaticDir string

	// AllowedOrigins feeds the CORS headers. "*" allows everything.
	AllowedOrigins []string
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	records *record.Service
	static  http.FileSystem
	router  *chi.Mux
}

// New creates a Handler and wires up all routes.
func New(svc *record.Service, opts Options) *Handler {
	h := &Handler{records: svc, router: chi.NewRouter()}
	if opts.StaticDir != "" {
		h.static = NewSafeFileSystem(opts.StaticDir)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h.router.Use(recovery)
	h.router.Use(requestLogger)
	h.router.Use(cors(origins))
	h.router.Use(middleware.StripSlashes)
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.Get("/health", h.health)

	h.router.Post("/create", h.create)
	h.router.Get("/read", h.read)
	h.router.Get("/all", h.all)
	h.router.Put("/update", h.update)
	h.router.Put("/increment", h.increment)
	h.router.Delete("/delete", h.delete)

	// Everything else is either a front end asset or not allowed.
	h.router.NotFound(h.fallback)
	h.router.MethodNotAllowed(h.fallback)
}

// ---------- request helpers ----------

// readJSON decodes the request body into v. An empty body leaves v
// untouched and reports errEmptyBody.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

var errEmptyBody = errors.New("empty body")

type mutationResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Value   any    `json:"value,omitempty"`
}

// ---------- status ----------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- record operations ----------

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in record.CreateInput
	if err := readJSON(r, &in); err != nil && !errors.Is(err, errEmptyBody) {
		WriteInvalidRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if in.ID == "" {
		in.ID = r.URL.Query().Get("id")
	}

	rec, err := h.records.Create(r.Context(), in)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{
		Message: fmt.Sprintf("Record %s created", rec.ID),
		ID:      rec.ID,
	})
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Read(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) all(w http.ResponseWriter, r *http.Request) {
	recs, err := h.records.List(r.Context())
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	var body struct {
		Value any `json:"value"`
	}
	if err := readJSON(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
		WriteInvalidRequest(w, "invalid JSON: "+err.Error())
		return
	}

	rec, err := h.records.Update(r.Context(), id, body.Value)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{
		Message: fmt.Sprintf("Record %s updated", rec.ID),
		ID:      rec.ID,
	})
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Increment(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{
		Message: fmt.Sprintf("Record %s incremented", rec.ID),
		ID:      rec.ID,
		Value:   rec.Value,
	})
}

// delete answers only after the store has accepted the removal.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := h.records.Delete(r.Context(), id); err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{
		Message: fmt.Sprintf("Record %s deleted", id),
		ID:      id,
	})
}

// fallback serves front end assets for GET/HEAD and rejects everything
// else with 405.
func (h *Handler) fallback(w http.ResponseWriter, r *http.Request) {
	if h.static != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		if name, ok := staticPath(r.URL.Path); ok {
			h.serveStatic(w, r, name)
			return
		}
	}
	writeMethodNotAllowed(w)
}
