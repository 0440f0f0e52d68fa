package service

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/auth"
	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/export"
	"github.com/symeon158/CVF-Survey-App/internal/gateway"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminService backs the admin surface: login, listing and export.
type AdminService struct {
	email     string
	passHash  string
	jwtSecret string
	rows      gateway.Reader
	cat       *catalog.Catalog
	log       *zap.Logger
}

func NewAdminService(email, passHash, jwtSecret string, rows gateway.Reader, cat *catalog.Catalog, log *zap.Logger) *AdminService {
	if passHash == "" {
		log.Warn("admin login disabled: no password hash configured")
	}
	return &AdminService{
		email:     email,
		passHash:  passHash,
		jwtSecret: jwtSecret,
		rows:      rows,
		cat:       cat,
		log:       log,
	}
}

type LoginResult struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (s *AdminService) Login(email, password string) (*LoginResult, error) {
	if s.passHash == "" || email != s.email || !auth.CheckPassword(s.passHash, password) {
		s.log.Info("admin login rejected", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}
	token, err := auth.GenerateToken(s.jwtSecret, email, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Email: email}, nil
}

// Rows returns the most recent stored rows in append order.
func (s *AdminService) Rows(ctx context.Context, limit int) ([]gateway.Row, error) {
	return s.rows.ReadRows(ctx, limit)
}

// Total reports how many rows the store holds. ok is false when the store
// cannot count without a full read.
func (s *AdminService) Total(ctx context.Context) (n int, ok bool, err error) {
	c, ok := s.rows.(gateway.Counter)
	if !ok {
		return 0, false, nil
	}
	n, err = c.Count(ctx)
	return n, err == nil, err
}

// Export writes every stored row as an xlsx workbook.
func (s *AdminService) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.rows.ReadRows(ctx, 0)
	if err != nil {
		return err
	}
	return export.WriteWorkbook(w, s.cat, rows)
}
