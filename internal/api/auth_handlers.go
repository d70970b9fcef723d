package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/safar/monmiam/internal/auth"
	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/models"
	"github.com/safar/monmiam/internal/store"
)

const minPasswordLength = 8

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"nom"`
	Phone    string `json:"telephone"`
	Password string `json:"password"`
}

func (r registerRequest) validate() error {
	v := &models.ValidationError{}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		v.Add("email", "adresse e-mail invalide")
	}
	if strings.TrimSpace(r.Name) == "" {
		v.Add("nom", "le nom est obligatoire")
	}
	if len(r.Password) < minPasswordLength {
		v.Add("password", "le mot de passe doit contenir au moins 8 caractères")
	}
	return v.OrNil()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Customer  *models.Customer `json:"client"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.handleError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	// Registration asks for a student account. The store grants a staff
	// role instead when an active employee document lists this e-mail.
	customer, err := s.store.CreateCustomer(r.Context(), store.NewCustomer{
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		Phone:        req.Phone,
		Role:         models.RoleStudent,
		PasswordHash: hash,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.respondToken(w, r, http.StatusCreated, customer)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	customer, err := s.store.GetCustomerByEmail(r.Context(), req.Email)
	if errors.Is(err, database.ErrCustomerNotFound) {
		respondError(w, http.StatusUnauthorized, "identifiants invalides")
		return
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if !auth.CheckPassword(customer.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "identifiants invalides")
		return
	}

	s.respondToken(w, r, http.StatusOK, customer)
}

func (s *Server) respondToken(w http.ResponseWriter, r *http.Request, status int, customer *models.Customer) {
	token, expires, err := s.issuer.Issue(customer)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, status, tokenResponse{Token: token, ExpiresAt: expires, Customer: customer})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	customer, err := s.store.GetCustomer(r.Context(), claims.CustomerID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}
