package client

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// ErrUnauthorized is returned for any 401. The stored token has already
// been cleared when the caller sees it.
var ErrUnauthorized = errors.New("session expired, please log in again")

// GenericErrorMessage is shown when the server gave no usable message.
const GenericErrorMessage = "Une erreur est survenue. Veuillez réessayer."

// APIError is a non-2xx answer other than 401.
type APIError struct {
	Status  int
	Message string
	// Fields is set on 422 responses: field name to messages.
	Fields map[string][]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

func (e *APIError) IsValidation() bool {
	return e.Status == http.StatusUnprocessableEntity
}

// UserMessage returns the text to show for err: the server's message when
// there is one, the generic fallback otherwise.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrUnauthorized) {
		return "Votre session a expiré. Veuillez vous reconnecter."
	}
	return GenericErrorMessage
}

// FieldMessages flattens the field errors of a 422 into "field : message"
// lines, sorted by field. It returns nil for any other error.
func FieldMessages(err error) []string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsValidation() {
		return nil
	}
	fields := make([]string, 0, len(apiErr.Fields))
	for field := range apiErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []string
	for _, field := range fields {
		for _, msg := range apiErr.Fields[field] {
			out = append(out, field+" : "+msg)
		}
	}
	return out
}
