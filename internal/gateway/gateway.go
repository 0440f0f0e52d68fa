// Package gateway holds the row stores a finished survey record can be
// appended to, and reads them back for the admin surface.
package gateway

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/config"
	"github.com/symeon158/CVF-Survey-App/internal/db"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// Row is a stored record keyed by column name. Allocation cells are ints,
// demographic cells strings or nil, the timestamp a string.
type Row map[string]any

// Reader reads stored rows back.
type Reader interface {
	// ReadRows returns the most recent limit rows in append order. A limit of
	// zero or less returns every row.
	ReadRows(ctx context.Context, limit int) ([]Row, error)
}

// Counter is implemented by stores that can count rows without reading them.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Backend is a row store usable both for submits and admin reads.
type Backend interface {
	survey.Gateway
	Reader
	Name() string
	Close() error
}

// Open builds the backend selected by cfg.Gateway.
func Open(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, log *zap.Logger) (Backend, error) {
	log = log.With(zap.String("gateway", cfg.Gateway))
	switch cfg.Gateway {
	case config.GatewayMemory:
		return NewMemory(cat), nil
	case config.GatewayXLSX:
		return NewXLSX(cfg.XLSXPath, cat)
	case config.GatewaySQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, cat)
	case config.GatewayPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL, cat)
	case config.GatewaySheets:
		opts, err := SheetsCredentials(cfg.GoogleCredentials, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		return NewSheets(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsRange, cat, opts...)
	case config.GatewayOxiDB:
		pool, err := db.NewPool(ctx, cfg.OxiDBAddr(), cfg.PoolSize, log)
		if err != nil {
			return nil, fmt.Errorf("connect to oxidb: %w", err)
		}
		log.Info("connected to oxidb", zap.String("addr", cfg.OxiDBAddr()), zap.Int("pool_size", pool.Size()))
		return NewOxiDB(pool, cat, log), nil
	}
	return nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
}

// rowFromCells maps the cells of a stored row onto the schema, coercing each
// cell to its column kind. Missing trailing cells become nil or zero.
func rowFromCells(schema []catalog.Column, cells []any) Row {
	row := make(Row, len(schema))
	for i, col := range schema {
		var cell any
		if i < len(cells) {
			cell = cells[i]
		}
		row[col.Name] = coerce(col.Kind, cell)
	}
	return row
}

func coerce(kind catalog.ColumnKind, cell any) any {
	switch kind {
	case catalog.KindInt:
		return toInt(cell)
	default:
		s := toText(cell)
		if s == "" && kind == catalog.KindText {
			return nil
		}
		return s
	}
}

func toInt(cell any) int {
	switch v := cell.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func toText(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(cell)
}

// tail keeps the last limit entries.
func tail[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[len(s)-limit:]
	}
	return s
}
