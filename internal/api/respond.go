package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/safar/monmiam/internal/database"
	"github.com/safar/monmiam/internal/models"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("encode JSON response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

func respondValidation(w http.ResponseWriter, verr *models.ValidationError) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "Les données fournies sont invalides.",
		"errors":  verr.Fields,
	})
}

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{database.ErrCustomerNotFound, http.StatusNotFound, "client introuvable"},
	{database.ErrArticleNotFound, http.StatusNotFound, "article introuvable"},
	{database.ErrOrderNotFound, http.StatusNotFound, "commande introuvable"},
	{database.ErrResourceNotFound, http.StatusNotFound, "ressource introuvable"},
	{database.ErrEmailTaken, http.StatusConflict, "cette adresse e-mail est déjà utilisée"},
	{database.ErrArticleUnavailable, http.StatusConflict, "un article du panier n'est plus disponible"},
	{database.ErrInvalidTransition, http.StatusConflict, "changement de statut non autorisé"},
	{database.ErrVersionConflict, http.StatusConflict, "la ressource a été modifiée entre-temps, rechargez-la"},
	{database.ErrLockTimeout, http.StatusServiceUnavailable, "service occupé, réessayez dans un instant"},
	{database.ErrEmptyOrder, http.StatusUnprocessableEntity, "le panier est vide"},
	{database.ErrUnknownToggle, http.StatusBadRequest, "ce champ ne peut pas être basculé"},
}

// statusFor maps a store error onto the HTTP status and user-facing message.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "erreur interne du serveur"
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		respondValidation(w, verr)
		return
	}

	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	respondError(w, status, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "corps de requête invalide")
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
