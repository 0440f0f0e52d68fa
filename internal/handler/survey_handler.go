package handler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/auth"
	"github.com/symeon158/CVF-Survey-App/internal/service"
	"github.com/symeon158/CVF-Survey-App/internal/session"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// SessionCookie carries the signed respondent session token.
const SessionCookie = "cvf_session"

var errNoSession = errors.New("no survey session")

// Sessions issues and reads the respondent session cookie.
type Sessions struct {
	Secret string
	TTL    time.Duration
	Secure bool
}

func (s Sessions) set(w http.ResponseWriter, id string) error {
	token, err := auth.GenerateSessionToken(s.Secret, id, s.TTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s Sessions) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s Sessions) id(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", errNoSession
	}
	id, err := auth.ValidateSessionToken(s.Secret, c.Value)
	if err != nil {
		return "", errNoSession
	}
	return id, nil
}

// SurveyHandler serves the respondent JSON API.
type SurveyHandler struct {
	svc      *service.SurveyService
	sessions Sessions
	log      *zap.Logger
}

func NewSurveyHandler(svc *service.SurveyService, sessions Sessions, log *zap.Logger) *SurveyHandler {
	return &SurveyHandler{svc: svc, sessions: sessions, log: log}
}

func (h *SurveyHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	cat := h.svc.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog": cat,
		"columns": cat.Columns(),
	})
}

func (h *SurveyHandler) Start(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Start(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sessions.set(w, v.SessionID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *SurveyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.View(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *SurveyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var changes survey.ChangeSet
	if err := readJSON(r, &changes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if changes.Empty() {
		writeError(w, http.StatusBadRequest, "no changes")
		return
	}
	v, err := h.svc.Update(r.Context(), id, changes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *SurveyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Submit(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *SurveyHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Discard(r.Context(), id); err != nil && !errors.Is(err, session.ErrNotFound) {
		h.fail(w, r, err)
		return
	}
	h.sessions.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SurveyHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := h.sessions.id(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	return id, true
}

func (h *SurveyHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var gwErr *survey.GatewayError
	if !errors.As(err, &gwErr) && !isClientError(err) {
		h.log.Error("survey request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeServiceError(w, err)
}

func isClientError(err error) bool {
	var fe *survey.FieldError
	return errors.As(err, &fe) ||
		errors.Is(err, survey.ErrIncomplete) ||
		errors.Is(err, survey.ErrSubmitInFlight) ||
		errors.Is(err, service.ErrSessionBusy) ||
		errors.Is(err, session.ErrNotFound)
}
