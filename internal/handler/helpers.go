package handler

import (
	"errors"
	"net/http"

	"skynotes/internal/domain"
	"skynotes/internal/httputil"
	"skynotes/internal/service/form"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, domain.UserMessage(err))
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, domain.UserMessage(err))
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotFound):
		// Missing and foreign entities look the same from outside
		httputil.RespondError(w, http.StatusForbidden, domain.PermissionDeniedMessage)
	case errors.Is(err, domain.ErrRemote):
		httputil.RespondError(w, http.StatusBadGateway, domain.UserMessage(err))
	case errors.Is(err, form.ErrBusy):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, domain.UserMessage(err))
	}
}

// handleFormError responds with the controller's own message when it has one.
func handleFormError(w http.ResponseWriter, err error, message string) {
	if message == "" {
		handleError(w, err)
		return
	}
	status := http.StatusInternalServerError
	var httpErr domain.HTTPError
	switch {
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotFound):
		status = http.StatusForbidden
	case errors.As(err, &httpErr):
		status = httpErr.StatusCode()
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	}
	httputil.RespondError(w, status, message)
}

// PathParam reads a required path parameter, responding 400 when it is empty.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// requireSession responds 401 when the request carries no identity.
func requireSession(w http.ResponseWriter, r *http.Request) bool {
	if !httputil.GetSession(r).SignedIn() {
		httputil.RespondError(w, http.StatusUnauthorized, "sign in required")
		return false
	}
	return true
}

// formResponse reports the outcome of a form operation.
type formResponse[T any] struct {
	Data        T          `json:"data"`
	State       form.State `json:"state"`
	Destination string     `json:"destination,omitempty"`
}
