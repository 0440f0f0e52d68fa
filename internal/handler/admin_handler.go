package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/auth"
	"github.com/symeon158/CVF-Survey-App/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminHandler struct {
	svc *service.AdminService
	log *zap.Logger
}

func NewAdminHandler(svc *service.AdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.svc.Rows(r.Context(), limit)
	if err != nil {
		h.log.Error("read submissions", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	body := map[string]any{
		"submissions": rows,
		"count":       len(rows),
		"limit":       limit,
	}
	total, ok, err := h.svc.Total(r.Context())
	if err != nil {
		h.log.Warn("count submissions", zap.Error(err))
	}
	if ok {
		body["total"] = total
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf); err != nil {
		h.log.Error("export submissions", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if claims := auth.GetUser(r.Context()); claims != nil {
		h.log.Info("submissions exported", zap.String("admin", claims.Email), zap.Int("bytes", buf.Len()))
	}
	name := "cvf_responses_" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
