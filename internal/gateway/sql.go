package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// ResponsesTable holds one row per submission.
const ResponsesTable = "cvf_responses"

type dialect struct {
	name      string
	driver    string
	seqColumn string
	bind      func(n int) string
}

var (
	sqliteDialect = dialect{
		name:      "sqlite",
		driver:    "sqlite",
		seqColumn: `"seq" INTEGER PRIMARY KEY AUTOINCREMENT`,
		bind:      func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:      "postgres",
		driver:    "pgx",
		seqColumn: `"seq" BIGSERIAL PRIMARY KEY`,
		bind:      func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// SQL stores rows in a relational table whose columns mirror the survey
// columns, plus a sequence column that fixes append order.
type SQL struct {
	db      *sql.DB
	dialect dialect
	schema  []catalog.Column

	insertQuery string
	selectCols  string
}

// OpenSQLite opens (or creates) the sqlite database file at path.
func OpenSQLite(ctx context.Context, path string, cat *catalog.Catalog) (*SQL, error) {
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer at a time keeps sqlite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return newSQL(ctx, db, sqliteDialect, cat)
}

// OpenPostgres connects through pgx's database/sql driver.
func OpenPostgres(ctx context.Context, dsn string, cat *catalog.Catalog) (*SQL, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return newSQL(ctx, db, postgresDialect, cat)
}

func newSQL(ctx context.Context, db *sql.DB, d dialect, cat *catalog.Catalog) (*SQL, error) {
	s := &SQL{db: db, dialect: d, schema: cat.Schema()}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.name, err)
	}
	if _, err := db.ExecContext(ctx, s.createTable()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: create table: %w", d.name, err)
	}

	cols := make([]string, len(s.schema))
	binds := make([]string, len(s.schema))
	for i, c := range s.schema {
		cols[i] = quoteIdent(c.Name)
		binds[i] = d.bind(i + 1)
	}
	s.selectCols = strings.Join(cols, ", ")
	s.insertQuery = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING "seq"`,
		quoteIdent(ResponsesTable), s.selectCols, strings.Join(binds, ", "))
	return s, nil
}

func (s *SQL) createTable() string {
	defs := []string{s.dialect.seqColumn}
	for _, c := range s.schema {
		var typ string
		switch c.Kind {
		case catalog.KindInt:
			typ = "INTEGER NOT NULL"
		case catalog.KindTimestamp:
			typ = "TEXT NOT NULL"
		default:
			typ = "TEXT"
		}
		defs = append(defs, quoteIdent(c.Name)+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdent(ResponsesTable), strings.Join(defs, ",\n\t"))
}

func (s *SQL) Name() string { return s.dialect.name }

func (s *SQL) Append(ctx context.Context, rec survey.Record) (survey.Ack, error) {
	ack := survey.Ack{Gateway: s.Name()}
	var seq int64
	if err := s.db.QueryRowContext(ctx, s.insertQuery, rec.Values()...).Scan(&seq); err != nil {
		return ack, fmt.Errorf("insert row: %w", err)
	}
	ack.Ref = strconv.FormatInt(seq, 10)
	return ack, nil
}

func (s *SQL) ReadRows(ctx context.Context, limit int) ([]Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY "seq" DESC`, s.selectCols, quoteIdent(ResponsesTable))
	var args []any
	if limit > 0 {
		query += " LIMIT " + s.dialect.bind(1)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: select rows: %w", s.dialect.name, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		cells := make([]any, len(s.schema))
		dest := make([]any, len(s.schema))
		for i, c := range s.schema {
			if c.Kind == catalog.KindInt {
				dest[i] = new(int64)
			} else {
				dest[i] = new(sql.NullString)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.dialect.name, err)
		}
		for i, d := range dest {
			switch v := d.(type) {
			case *int64:
				cells[i] = *v
			case *sql.NullString:
				if v.Valid {
					cells[i] = v.String
				}
			}
		}
		out = append(out, rowFromCells(s.schema, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: read rows: %w", s.dialect.name, err)
	}
	slices.Reverse(out)
	return out, nil
}

func (s *SQL) Close() error { return s.db.Close() }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
