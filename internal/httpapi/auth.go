package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"streamflix/authd/internal/auth"
	"streamflix/authd/internal/model"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	State     auth.State `json:"state"`
	Message   string     `json:"message"`
	Challenge string     `json:"challenge"`
}

type verifyRequest struct {
	Challenge string `json:"challenge"`
	Code      string `json:"code"`
}

type verifyResponse struct {
	State     auth.State `json:"state"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Message   string     `json:"message"`
}

type resendRequest struct {
	Challenge string `json:"challenge"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}

	created, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
	})
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]model.User{"user": created})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "username is required")
		return
	}

	res, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeFlowError(w, err, res.State)
		return
	}

	challenge, err := s.challenges.issue(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to issue challenge")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		State:     res.State,
		Message:   res.Message,
		Challenge: challenge,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}

	username, err := s.challenges.parse(req.Challenge)
	if err != nil {
		log.Printf("[http][verify] challenge rejected: %v", err)
		writeError(w, http.StatusUnauthorized, "challenge_invalid", "login challenge is invalid or expired, please login again")
		return
	}

	res, err := s.auth.VerifyCode(r.Context(), username, req.Code)
	if err != nil {
		writeFlowError(w, err, res.State)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		State:     res.State,
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Message:   res.Message,
	})
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}

	username, err := s.challenges.parse(req.Challenge)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "challenge_invalid", "login challenge is invalid or expired, please login again")
		return
	}

	msg, err := s.auth.ResendCode(r.Context(), username)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, string(auth.KindSessionInvalid), "missing bearer token")
		return
	}

	state, err := s.auth.Logout(r.Context(), token)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]auth.State{"state": state})
}
