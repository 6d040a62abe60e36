package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/udem-taln/nerbridge/pkg/models"
	"github.com/udem-taln/nerbridge/pkg/server/handlertools"
)

// ProcessHandler serves a WrapperInterface call. The {method} path parameter selects the
// model size; the response body is the {"labels": [...]} document, byte for byte.
func ProcessHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		size, err := handlertools.ModelSizeFromURL(r, "method")
		if err != nil {
			handlertools.RenderError(w, err, http.StatusNotFound)
			return
		}

		var body models.ProcessRequest
		if err := handlertools.DecodeJSON(w, r, &body); err != nil {
			handlertools.RenderError(w, err, http.StatusBadRequest)
			return
		}

		log.Debugf(
			"%s called (request %s), target=%q",
			size.Method(),
			middleware.GetReqID(r.Context()),
			body.Target,
		)

		doc, err := models.Dispatch(r.Context(), appState.Processor, size, body.Sentence, body.Target)
		if err != nil {
			handlertools.RenderError(w, err, statusFor(err))
			return
		}

		if err := handlertools.WriteJSONText(w, doc); err != nil {
			log.Errorf("error writing %s response: %s", size.Method(), err)
		}
	}
}

// GetModelsHandler reports the name and load state of every model slot.
func GetModelsHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if appState.Models == nil {
			handlertools.RenderError(w, errors.New("model status not available"), http.StatusNotFound)
			return
		}
		if err := handlertools.EncodeJSON(w, appState.Models.Status()); err != nil {
			handlertools.RenderError(w, err, http.StatusInternalServerError)
		}
	}
}

// httpStatusError is implemented by errors that carry the status of an upstream reply.
type httpStatusError interface {
	HTTPStatus() int
}

func statusFor(err error) int {
	var upstream httpStatusError
	switch {
	case errors.As(err, &upstream):
		return upstream.HTTPStatus()
	case errors.Is(err, models.ErrModelLoad), errors.Is(err, models.ErrInference):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
