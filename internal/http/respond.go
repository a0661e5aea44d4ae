package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pesantren/internal/core"
	"pesantren/internal/log"
	"pesantren/internal/table"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	errBadJSON      = errors.New("malformed JSON body")
	errInvalidQuery = errors.New("invalid query parameter")
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error to its HTTP status and public message.
func statusFor(err error) (int, string) {
	switch {
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity, "validation failed"
	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMonth):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, errBadJSON), errors.Is(err, errInvalidQuery), errors.Is(err, table.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, core.ErrInvalidCredentials.Error()
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "already exists"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError sends the mapped status. Unexpected errors are logged with
// their cause and answered with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	body := errorBody{Error: msg}

	var verrs core.ValidationErrors
	var verr core.ValidationError
	switch {
	case errors.As(err, &verrs):
		body.Fields = verrs.Fields()
	case errors.As(err, &verr):
		body.Fields = map[string]string{verr.Field: verr.Message}
	}

	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldPath, r.URL.Path)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadJSON
		}
		if errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if dec.More() {
		return errBadJSON
	}
	return nil
}
