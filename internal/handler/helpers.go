package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/symeon158/CVF-Survey-App/internal/service"
	"github.com/symeon158/CVF-Survey-App/internal/session"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeErrorDetails(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, map[string]any{"error": msg, "details": details})
}

type fieldDetail struct {
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Reason string `json:"reason"`
}

type validationDetail struct {
	Section string   `json:"section,omitempty"`
	Total   *int     `json:"total,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Message string   `json:"message"`
}

// writeServiceError maps service and core errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var fe *survey.FieldError
	var gwErr *survey.GatewayError
	switch {
	case errors.As(err, &fe):
		writeErrorDetails(w, http.StatusBadRequest, "invalid field value",
			fieldDetail{Field: fe.Field, Value: fe.Value, Reason: fe.Reason})
	case errors.Is(err, survey.ErrIncomplete):
		writeErrorDetails(w, http.StatusUnprocessableEntity, survey.ErrIncomplete.Error(), validationDetails(err))
	case errors.Is(err, survey.ErrSubmitInFlight), errors.Is(err, service.ErrSessionBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &gwErr):
		writeErrorDetails(w, http.StatusBadGateway, "submission failed", map[string]string{
			"gateway": gwErr.Gateway,
			"cause":   gwErr.Err.Error(),
		})
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func validationDetails(err error) []validationDetail {
	var out []validationDetail
	var walk func(error)
	walk = func(err error) {
		if ve, ok := err.(*survey.ValidationError); ok {
			d := validationDetail{Message: ve.Error()}
			if ve.Kind == survey.SectionTotalMismatch {
				total := ve.Total
				d.Section, d.Total = ve.Section, &total
			} else {
				d.Fields = ve.Fields
			}
			out = append(out, d)
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
