package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/db"
	"github.com/symeon158/CVF-Survey-App/internal/oxidb/oxidbtest"
	"github.com/symeon158/CVF-Survey-App/internal/repository"
)

func newTestOxiDB(t *testing.T) (*OxiDB, *oxidbtest.Server) {
	t.Helper()
	srv, err := oxidbtest.NewServer()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	pool, err := db.NewPool(context.Background(), srv.Addr(), 2, zap.NewNop())
	require.NoError(t, err)
	o := NewOxiDB(pool, defaultCatalog(t), zap.NewNop())
	t.Cleanup(func() { o.Close() })
	return o, srv
}

func TestOxiDB(t *testing.T) {
	o, srv := newTestOxiDB(t)
	require.NoError(t, o.EnsureIndexes(context.Background()))

	exerciseBackend(t, o)

	n, err := o.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs := srv.Docs(repository.SubmissionsCollection)
	require.Len(t, docs, 3)
	assert.Equal(t, "2025-03-14T11:30:00+02:00", docs[0]["submittedAt"])
	row, ok := docs[0]["row"].([]any)
	require.True(t, ok)
	assert.Len(t, row, 30)
	assert.NotEmpty(t, docs[0]["submissionId"])
}

func TestOxiDBServerError(t *testing.T) {
	o, srv := newTestOxiDB(t)
	cat := defaultCatalog(t)
	srv.FailWith("collection is read-only")

	ack, err := o.Append(context.Background(), testRecord(cat, "IT Division", [4]int{25, 25, 25, 25}))
	assert.ErrorContains(t, err, "collection is read-only")
	assert.Equal(t, "oxidb", ack.Gateway)
}
