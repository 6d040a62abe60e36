package handlertools

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/models"
)

var log = internal.GetLogger()

var validate = validator.New()

// MaxBodyBytes bounds request bodies. Sentences are short; anything larger is a mistake.
const MaxBodyBytes = 1 << 20

// APIError represents an error response.
type APIError struct {
	Message string `json:"message"`
}

// EncodeJSON encodes data into JSON and writes it to the response writer.
func EncodeJSON(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(data)
}

// WriteJSONText writes an already encoded JSON document verbatim.
func WriteJSONText(w http.ResponseWriter, doc string) error {
	w.Header().Set("Content-Type", "application/json")
	_, err := io.WriteString(w, doc)
	return err
}

// DecodeJSON decodes a JSON request body into data and validates it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, data interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}
	if err := validate.Struct(data); err != nil {
		return fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}
	return nil
}

// ModelSizeFromURL parses a model size ("sm", "medium", "processLG", ...) from a path
// parameter.
func ModelSizeFromURL(r *http.Request, paramName string) (models.ModelSize, error) {
	return models.ParseModelSize(chi.URLParam(r, paramName))
}

// RenderError renders an error response. The status is derived from err when it wraps
// a known sentinel, otherwise status is used.
func RenderError(w http.ResponseWriter, err error, status int) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrIncompatibleVersion):
		status = http.StatusConflict
	case errors.Is(err, models.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnknownModelSize):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrNotRegistered):
		status = http.StatusServiceUnavailable
	}

	if status != http.StatusNotFound {
		// Don't log not found errors
		log.Error(err)
	}

	http.Error(w, err.Error(), status)
}
