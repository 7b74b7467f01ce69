// Package handler provides the HTTP handlers for the session service API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies; every payload on this API is tiny.
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, errs map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":            "validation failed",
		"validationErrors": errs,
	})
}

// decodeBody reads a JSON request body into dst, rejecting unknown fields.
// It writes the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// validationDetail converts validator errors into a field to message map for
// clients that render per-field feedback.
func validationDetail(err error) map[string]string {
	errs := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
			switch e.Tag() {
			case "required":
				msg = "this field is required"
			case "email":
				msg = "invalid email address"
			case "min":
				msg = fmt.Sprintf("must be at least %s characters", e.Param())
			case "max":
				msg = fmt.Sprintf("must be at most %s characters", e.Param())
			case "oneof":
				msg = fmt.Sprintf("must be one of: %s", e.Param())
			}
			errs[e.Field()] = msg
		}
	} else {
		errs["_global"] = err.Error()
	}
	return errs
}
