package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"streamflix/authd/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.User{"user": userFromContext(r.Context())})
}

type profileRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "PUT only")
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}

	updated, err := s.auth.UpdateProfile(r.Context(), tokenFromContext(r.Context()), req.Phone, req.Email)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.User{"user": updated})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}

	items, err := s.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		log.Printf("[http][catalog] %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to search catalog")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.CatalogItem{"items": items})
}
