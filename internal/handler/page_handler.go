package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/service"
	"github.com/symeon158/CVF-Survey-App/internal/session"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/form.html"))

// PageHandler serves the server-rendered form.
type PageHandler struct {
	svc      *service.SurveyService
	sessions Sessions
	log      *zap.Logger
}

func NewPageHandler(svc *service.SurveyService, sessions Sessions, log *zap.Logger) *PageHandler {
	return &PageHandler{svc: svc, sessions: sessions, log: log}
}

type pageOption struct {
	Key       string
	Label     string
	Statement string
	Value     int
}

type pageSection struct {
	Title   string
	Example string
	Total   int
	Valid   bool
	Options []pageOption
}

type pageDemographic struct {
	Key         string
	Label       string
	Placeholder string
	Help        string
	Choices     []string
	Selected    string
}

type pageData struct {
	Catalog      *catalog.Catalog
	View         *survey.View
	Demographics []pageDemographic
	Sections     []pageSection
	Steps        []int
	FieldError   string
	CSRFField    template.HTML
}

// Form renders the survey, opening a session when the request has none.
func (h *PageHandler) Form(w http.ResponseWriter, r *http.Request) {
	v, err := h.currentView(w, r)
	if err != nil {
		h.log.Error("render survey page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, v, "")
}

// Post applies the posted form and optionally submits it. The browser is
// redirected back to the form so a reload never resubmits.
func (h *PageHandler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.id(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if r.PostForm.Get("action") == "discard" {
		if err := h.svc.Discard(ctx, id); err != nil && !errors.Is(err, session.ErrNotFound) {
			h.log.Error("discard session", zap.String("session_id", id), zap.Error(err))
		}
		h.sessions.clear(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	changes, err := changesFromForm(h.svc.Catalog(), r)
	if err == nil && !changes.Empty() {
		_, err = h.svc.Update(ctx, id, changes)
	}
	if err == nil && r.PostForm.Get("action") == "submit" {
		_, err = h.svc.Submit(ctx, id)
	}

	var fe *survey.FieldError
	var gwErr *survey.GatewayError
	switch {
	case err == nil,
		errors.Is(err, survey.ErrIncomplete),
		errors.As(err, &gwErr):
		// Validation messages and the stored failure cause show on the next render.
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.As(err, &fe):
		v, verr := h.svc.View(ctx, id)
		if verr != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		h.render(w, r, http.StatusBadRequest, v, fe.Error())
	case errors.Is(err, survey.ErrSubmitInFlight), errors.Is(err, service.ErrSessionBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrNotFound):
		h.sessions.clear(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.log.Error("survey form post", zap.String("session_id", id), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *PageHandler) currentView(w http.ResponseWriter, r *http.Request) (*survey.View, error) {
	if id, err := h.sessions.id(r); err == nil {
		v, err := h.svc.View(r.Context(), id)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
	}
	v, err := h.svc.Start(r.Context())
	if err != nil {
		return nil, err
	}
	if err := h.sessions.set(w, v.SessionID); err != nil {
		return nil, err
	}
	return v, nil
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, v *survey.View, fieldErr string) {
	cat := h.svc.Catalog()
	data := pageData{
		Catalog:    cat,
		View:       v,
		FieldError: fieldErr,
		CSRFField:  csrf.TemplateField(r),
	}
	for step := 0; step <= catalog.Points; step += cat.Step {
		data.Steps = append(data.Steps, step)
	}
	for _, d := range cat.Demographics {
		data.Demographics = append(data.Demographics, pageDemographic{
			Key:         d.Key,
			Label:       d.Label,
			Placeholder: d.Placeholder,
			Help:        d.Help,
			Choices:     d.Choices,
			Selected:    v.Response.Demographics[d.Key],
		})
	}
	for i := range cat.Sections {
		s := &cat.Sections[i]
		ps := pageSection{Title: s.Title}
		if s.Example != nil {
			ps.Example = s.Example.Text
		}
		if st, ok := v.Report.Section(s.Key); ok {
			ps.Total, ps.Valid = st.Total, st.Valid
		}
		for _, o := range s.Options {
			key := catalog.AllocationKey(s.Key, o.Key)
			ps.Options = append(ps.Options, pageOption{
				Key:       key,
				Label:     o.Label,
				Statement: o.Statement,
				Value:     v.Response.Allocations[key],
			})
		}
		data.Sections = append(data.Sections, ps)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		h.log.Error("execute survey template", zap.Error(err))
	}
}

// changesFromForm reads every catalog field present in the posted form.
func changesFromForm(cat *catalog.Catalog, r *http.Request) (survey.ChangeSet, error) {
	cs := survey.ChangeSet{
		Demographics: map[string]string{},
		Allocations:  map[string]int{},
	}
	for _, d := range cat.Demographics {
		if vals, ok := r.PostForm[d.Key]; ok && len(vals) > 0 {
			cs.Demographics[d.Key] = vals[0]
		}
	}
	for _, s := range cat.Sections {
		for _, key := range s.AllocationKeys() {
			raw := r.PostForm.Get(key)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return survey.ChangeSet{}, &survey.FieldError{Field: key, Value: raw, Reason: "not a number"}
			}
			cs.Allocations[key] = n
		}
	}
	return cs, nil
}
