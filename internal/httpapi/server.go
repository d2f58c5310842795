package httpapi

import (
	"net/http"

	"streamflix/authd/internal/auth"
	"streamflix/authd/internal/catalog"
	"streamflix/authd/internal/config"
)

type Server struct {
	cfg        config.Config
	auth       *auth.Service
	catalog    *catalog.Service
	challenges *challengeSigner
	mux        *http.ServeMux
}

func NewServer(cfg config.Config, authSvc *auth.Service, cat *catalog.Service) *Server {
	s := &Server{
		cfg:        cfg,
		auth:       authSvc,
		catalog:    cat,
		challenges: newChallengeSigner(cfg.ChallengeSecret),
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = sessionMiddleware(s.auth, h)
	h = recoverMiddleware(h)
	h = requestIDMiddleware(h)
	h = loggingMiddleware(h)
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("/v1/auth/register", s.handleRegister)
	s.mux.HandleFunc("/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("/v1/auth/verify", s.handleVerify)
	s.mux.HandleFunc("/v1/auth/resend", s.handleResend)
	s.mux.HandleFunc("/v1/auth/logout", s.handleLogout)

	s.mux.HandleFunc("/v1/me", s.handleMe)
	s.mux.HandleFunc("/v1/profile", s.handleProfile)
	s.mux.HandleFunc("/v1/catalog", s.handleCatalog)
}
