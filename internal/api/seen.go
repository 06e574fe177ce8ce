package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// searchSeen GET /api/seen/
func (s *Server) searchSeen(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	page, err := s.registry.Page(r.Context(), q.filter(), q.pageRequest())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, page)
}

// createSeen POST /api/seen/
func (s *Server) createSeen(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validateStruct(req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	entry, err := s.registry.Create(r.Context(), req.newEntry())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, entry)
}

// deleteSeen DELETE /api/seen/
func (s *Server) deleteSeen(w http.ResponseWriter, r *http.Request) {
	q, err := parseDeleteQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	n, err := s.registry.DeleteBulk(r.Context(), q.filter())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]int{"deleted": n})
}

// getSeenEntry GET /api/seen/{id}
func (s *Server) getSeenEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	entry, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, entry)
}

// deleteSeenEntry DELETE /api/seen/{id}
func (s *Server) deleteSeenEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, struct{}{})
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid seen entry id")
		return 0, false
	}
	return id, true
}
