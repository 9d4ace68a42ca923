package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sha1n/mcp-manual-server/internal/library"
	"github.com/sha1n/mcp-manual-server/internal/manual"
)

// SearchResponse is the body of an in-page search.
type SearchResponse struct {
	Query        string          `json:"query"`
	Results      []manual.Result `json:"results"`
	PanelVisible bool            `json:"panel_visible"`
	ResultsHTML  string          `json:"results_html"`
}

type jumpRequest struct {
	Anchor  string `json:"anchor"`
	Section string `json:"section"`
}

type inputRequest struct {
	Value string `json:"value"`
}

// RegisterRoutes mounts the page API under /api on the given router.
func RegisterRoutes(r chi.Router, svc *library.Service) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", handleLibrarySearch(svc))
		r.Post("/refresh", handleRefresh(svc))

		r.Route("/pages", func(r chi.Router) {
			r.Get("/", handleListPages(svc))
			r.Get("/{page}", handleRenderPage(svc))
			r.Get("/{page}/search", handleSearch(svc))
			r.Post("/{page}/input", handleInput(svc))
			r.Post("/{page}/jump", handleJump(svc))
			r.Post("/{page}/clear", handleClear(svc))
			r.Get("/{page}/sections/{id}", handleSection(svc))
		})
	})
}

func handleListPages(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Pages())
	}
}

func handleRenderPage(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		if err := svc.Render(chi.URLParam(r, "page"), &sb); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(sb.String()))
	}
}

func handleSearch(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := chi.URLParam(r, "page")
		query := r.URL.Query().Get("q")

		results, err := svc.Search(page, query)
		if err != nil {
			writeError(w, err)
			return
		}
		markup, visible, err := svc.ResultsHTML(page)
		if err != nil {
			writeError(w, err)
			return
		}
		if results == nil {
			results = []manual.Result{}
		}
		writeJSON(w, http.StatusOK, SearchResponse{
			Query:        query,
			Results:      results,
			PanelVisible: visible,
			ResultsHTML:  markup,
		})
	}
}

func handleInput(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inputRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.Input(chi.URLParam(r, "page"), req.Value); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleJump(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jumpRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.JumpTo(chi.URLParam(r, "page"), req.Anchor, req.Section)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleClear(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearSearch(chi.URLParam(r, "page")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSection(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		markup, err := svc.ReadSection(chi.URLParam(r, "page"), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(markup))
	}
}

func handleLibrarySearch(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if strings.TrimSpace(q.Get("q")) == "" {
			http.Error(w, "query parameter q is required", http.StatusBadRequest)
			return
		}
		res, err := svc.SearchLibrary(r.Context(), library.LibraryQuery{
			Query: q.Get("q"),
			Page:  q.Get("page"),
			Type:  q.Get("type"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleRefresh(svc *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Refresh(r.Context())
		if report == nil {
			writeError(w, err)
			return
		}
		status := http.StatusOK
		if err != nil {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, report)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, library.ErrPageNotFound), errors.Is(err, library.ErrSectionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, library.ErrNotReady):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}
