package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/session"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 2 * time.Second
	lockRetry       = 25 * time.Millisecond
)

// ErrSessionBusy is returned when another request held the session lock for
// longer than an edit, view or discard is willing to wait.
var ErrSessionBusy = errors.New("session is busy, try again")

// SurveyService runs respondent sessions against the session store.
type SurveyService struct {
	form     *survey.Form
	store    session.Store
	log      *zap.Logger
	lockTTL  time.Duration
	lockWait time.Duration
	submits  singleflight.Group
}

func NewSurveyService(form *survey.Form, store session.Store, log *zap.Logger) *SurveyService {
	return &SurveyService{
		form:     form,
		store:    store,
		log:      log,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}
}

// SubmitResult is returned once a record has been appended.
type SubmitResult struct {
	SessionID string         `json:"sessionId"`
	Gateway   string         `json:"gateway"`
	Ref       string         `json:"ref,omitempty"`
	Timestamp string         `json:"timestamp"`
	Record    map[string]any `json:"record"`
}

func (s *SurveyService) Catalog() *catalog.Catalog { return s.form.Catalog() }

// Start opens a fresh session.
func (s *SurveyService) Start(ctx context.Context) (*survey.View, error) {
	sess := s.form.NewSession(uuid.NewString())
	v := s.form.View(sess)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Debug("session started", zap.String("session_id", sess.ID))
	return &v, nil
}

// View renders the session. A pending confirmation is consumed under the
// session lock and saved, so the banner is shown once.
func (s *SurveyService) View(ctx context.Context, id string) (*survey.View, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.JustSubmitted {
		v := s.form.View(sess)
		return &v, nil
	}

	unlock, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, id, unlock)

	// Re-read: an edit may have landed since the unlocked read.
	sess, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pending := sess.JustSubmitted
	v := s.form.View(sess)
	if pending {
		if err := s.store.Save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

// Update applies a batch of field changes. Nothing is stored when any change
// is rejected.
func (s *SurveyService) Update(ctx context.Context, id string, changes survey.ChangeSet) (*survey.View, error) {
	unlock, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, id, unlock)

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.form.Apply(sess, changes.Events()...); err != nil {
		return nil, err
	}
	v := s.form.View(sess)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return &v, nil
}

// Submit appends the session's record. Concurrent submits of one session in
// this process share a single append; across processes the store lock turns
// the loser away with survey.ErrSubmitInFlight.
func (s *SurveyService) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	res, err, shared := s.submits.Do(id, func() (any, error) {
		return s.submit(ctx, id)
	})
	if shared {
		s.log.Debug("submit joined an in-flight append", zap.String("session_id", id))
	}
	if err != nil {
		return nil, err
	}
	return res.(*SubmitResult), nil
}

func (s *SurveyService) submit(ctx context.Context, id string) (*SubmitResult, error) {
	unlock, err := s.tryLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, id, unlock)

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.form.Submit(ctx, sess)
	var gwErr *survey.GatewayError
	switch {
	case errors.As(err, &gwErr):
		s.log.Warn("append failed",
			zap.String("session_id", id),
			zap.String("gateway", gwErr.Gateway),
			zap.Error(gwErr.Err),
		)
		if saveErr := s.store.Save(ctx, sess); saveErr != nil {
			s.log.Error("save session after failed append", zap.String("session_id", id), zap.Error(saveErr))
		}
		return nil, err
	case err != nil:
		return nil, err
	}

	s.log.Info("response submitted",
		zap.String("session_id", id),
		zap.String("gateway", out.Ack.Gateway),
		zap.String("ref", out.Ack.Ref),
	)
	if err := s.store.Save(ctx, sess); err != nil {
		// The row is stored; only the confirmation banner is lost.
		s.log.Error("save session after append", zap.String("session_id", id), zap.Error(err))
	}
	return &SubmitResult{
		SessionID: id,
		Gateway:   out.Ack.Gateway,
		Ref:       out.Ack.Ref,
		Timestamp: out.Record.Timestamp().Format(time.RFC3339),
		Record:    out.Record.Map(),
	}, nil
}

// Discard deletes the session. It waits for an in-flight submit so the
// submit cannot save the session back afterwards.
func (s *SurveyService) Discard(ctx context.Context, id string) error {
	unlock, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer s.unlock(ctx, id, unlock)

	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// tryLock takes the session lock without waiting. A held lock means another
// submit owns the session.
func (s *SurveyService) tryLock(ctx context.Context, id string) (session.UnlockFunc, error) {
	unlock, err := s.store.Lock(ctx, id, s.lockTTL)
	if errors.Is(err, session.ErrLocked) {
		return nil, survey.ErrSubmitInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	return unlock, nil
}

// acquire retries the session lock for up to lockWait, then gives up with
// ErrSessionBusy.
func (s *SurveyService) acquire(ctx context.Context, id string) (session.UnlockFunc, error) {
	deadline := time.Now().Add(s.lockWait)
	for {
		unlock, err := s.store.Lock(ctx, id, s.lockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, session.ErrLocked) {
			return nil, fmt.Errorf("lock session: %w", err)
		}
		if !time.Now().Before(deadline) {
			return nil, ErrSessionBusy
		}
		t := time.NewTimer(lockRetry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (s *SurveyService) unlock(ctx context.Context, id string, unlock session.UnlockFunc) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("release session lock", zap.String("session_id", id), zap.Error(err))
	}
}
