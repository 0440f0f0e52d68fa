package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/symeon158/CVF-Survey-App/internal/db"
	"github.com/symeon158/CVF-Survey-App/internal/models"
	"github.com/symeon158/CVF-Survey-App/internal/oxidb"
)

const SubmissionsCollection = "_cvf_submissions"

type SubmissionRepo struct {
	pool *db.Pool
}

func NewSubmissionRepo(pool *db.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func (r *SubmissionRepo) EnsureIndexes(ctx context.Context) error {
	c := r.pool.Get()
	if err := c.CreateCollection(ctx, SubmissionsCollection); err != nil {
		return err
	}
	if err := c.CreateIndex(ctx, SubmissionsCollection, "submissionId"); err != nil {
		return err
	}
	return c.CreateCompositeIndex(ctx, SubmissionsCollection, []string{"submittedAt", "submissionId"})
}

func (r *SubmissionRepo) Create(ctx context.Context, sub *models.Submission) (string, error) {
	c := r.pool.Get()
	doc, err := submissionToDoc(sub)
	if err != nil {
		return "", err
	}
	result, err := c.Insert(ctx, SubmissionsCollection, doc)
	if err != nil {
		return "", err
	}
	return extractID(result), nil
}

// Latest returns up to limit submissions, newest first. A limit of zero or
// less returns all of them.
func (r *SubmissionRepo) Latest(ctx context.Context, limit int) ([]models.Submission, error) {
	c := r.pool.Get()
	opts := &oxidb.FindOptions{Sort: map[string]any{"_id": -1}}
	if limit > 0 {
		opts.Limit = &limit
	}
	docs, err := c.Find(ctx, SubmissionsCollection, map[string]any{}, opts)
	if err != nil {
		return nil, err
	}

	subs := make([]models.Submission, 0, len(docs))
	for _, d := range docs {
		s, err := docToSubmission(d)
		if err != nil {
			continue
		}
		subs = append(subs, *s)
	}
	return subs, nil
}

func (r *SubmissionRepo) Count(ctx context.Context) (int, error) {
	c := r.pool.Get()
	return c.Count(ctx, SubmissionsCollection, map[string]any{})
}

func submissionToDoc(s *models.Submission) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("submission doc: %w", err)
	}
	delete(doc, "_id")
	return doc, nil
}

func docToSubmission(doc map[string]any) (*models.Submission, error) {
	normalizeID(doc)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal submission doc: %w", err)
	}
	var s models.Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal submission: %w", err)
	}
	return &s, nil
}
