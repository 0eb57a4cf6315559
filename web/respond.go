// ABOUTME: JSON response helpers and store error to HTTP status mapping
// ABOUTME: Errors are returned as {"error": message}
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/harperreed/outreach/db"
	"github.com/harperreed/outreach/sync"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	if len(message) > 300 {
		message = message[:300] + "..."
	}
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps store and sync errors onto status codes.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var verr validationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrConflict), errors.Is(err, sync.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, sync.ErrUnknownSource):
		status = http.StatusNotFound
	case db.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		s.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit and offset; invalid values are rejected.
func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &limit, "offset": &offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "Invalid "+name)
			return 0, 0, false
		}
		*dst = n
	}
	return limit, offset, true
}

// optionalBool parses a tri-state query flag.
func optionalBool(w http.ResponseWriter, r *http.Request, name string) (*bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return nil, false
	}
	return &b, true
}
