package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/db"
	"github.com/symeon158/CVF-Survey-App/internal/models"
	"github.com/symeon158/CVF-Survey-App/internal/repository"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

// OxiDB stores one document per submission in an OxiDB collection.
type OxiDB struct {
	pool   *db.Pool
	repo   *repository.SubmissionRepo
	schema []catalog.Column
	log    *zap.Logger
}

func NewOxiDB(pool *db.Pool, cat *catalog.Catalog, log *zap.Logger) *OxiDB {
	return &OxiDB{
		pool:   pool,
		repo:   repository.NewSubmissionRepo(pool),
		schema: cat.Schema(),
		log:    log,
	}
}

func (o *OxiDB) Name() string { return "oxidb" }

// EnsureIndexes creates the collection and its indexes.
func (o *OxiDB) EnsureIndexes(ctx context.Context) error {
	return o.repo.EnsureIndexes(ctx)
}

func (o *OxiDB) Append(ctx context.Context, rec survey.Record) (survey.Ack, error) {
	ack := survey.Ack{Gateway: o.Name()}
	sub := &models.Submission{
		SubmissionID: uuid.NewString(),
		SubmittedAt:  rec.Timestamp().Format(time.RFC3339),
		Columns:      rec.Columns(),
		Row:          rec.Values(),
		Data:         rec.Map(),
	}
	id, err := o.repo.Create(ctx, sub)
	if err != nil {
		return ack, err
	}
	o.log.Debug("submission stored", zap.String("id", id), zap.String("submission_id", sub.SubmissionID))
	ack.Ref = sub.SubmissionID
	return ack, nil
}

func (o *OxiDB) ReadRows(ctx context.Context, limit int) ([]Row, error) {
	subs, err := o.repo.Latest(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Row, len(subs))
	for i, sub := range subs {
		cells := make([]any, len(o.schema))
		for j, col := range o.schema {
			cells[j] = sub.Data[col.Name]
		}
		// Latest is newest first.
		out[len(subs)-1-i] = rowFromCells(o.schema, cells)
	}
	return out, nil
}

func (o *OxiDB) Count(ctx context.Context) (int, error) {
	return o.repo.Count(ctx)
}

func (o *OxiDB) Close() error {
	o.pool.Close()
	return nil
}
