package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"moneylend/pkg/auth"
	"moneylend/pkg/models"
	"moneylend/pkg/store"
)

type registerRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleAgent
	}
	if req.Role != models.RoleAgent && req.Role != models.RoleAdmin {
		writeDetail(w, http.StatusBadRequest, "Invalid role")
		return
	}

	if _, err := s.storage.GetUserByEmail(req.Email); err == nil {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Error during registration: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.storage.CreateUser(user); err != nil {
		log.Printf("Error creating user: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.issueToken(w, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.storage.GetUserByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Printf("Error during login: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.issueToken(w, user)
}

func (s *Server) issueToken(w http.ResponseWriter, user *models.User) {
	token, err := s.tokens.Issue(user.Email, user.Role)
	if err != nil {
		log.Printf("Error creating access token: %v", err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
