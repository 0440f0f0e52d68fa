package gateway

import (
	"context"
	"strconv"
	"sync"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// Memory keeps rows in process. Its contents are lost on restart.
type Memory struct {
	schema []catalog.Column

	mu   sync.Mutex
	rows [][]any
	err  error
}

func NewMemory(cat *catalog.Catalog) *Memory {
	return &Memory{schema: cat.Schema()}
}

func (m *Memory) Name() string { return "memory" }

// FailWith makes every following append return err. A nil err clears it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *Memory) Append(ctx context.Context, rec survey.Record) (survey.Ack, error) {
	ack := survey.Ack{Gateway: m.Name()}
	if err := ctx.Err(); err != nil {
		return ack, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ack, m.err
	}
	m.rows = append(m.rows, rec.Values())
	ack.Ref = strconv.Itoa(len(m.rows))
	return ack, nil
}

func (m *Memory) ReadRows(_ context.Context, limit int) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := tail(m.rows, limit)
	out := make([]Row, len(src))
	for i, cells := range src {
		out[i] = rowFromCells(m.schema, cells)
	}
	return out, nil
}

// Len reports how many rows were appended.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *Memory) Count(context.Context) (int, error) { return m.Len(), nil }

func (m *Memory) Close() error { return nil }
