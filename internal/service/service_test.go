package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/symeon158/CVF-Survey-App/internal/auth"
	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/gateway"
	"github.com/symeon158/CVF-Survey-App/internal/session"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

type fixture struct {
	cat   *catalog.Catalog
	gw    *gateway.Memory
	store *session.MemoryStore
	svc   *SurveyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	gw := gateway.NewMemory(cat)
	store := session.NewMemoryStore(time.Hour)
	form := survey.NewForm(cat, gw, survey.WithLocation(time.UTC))
	return &fixture{cat: cat, gw: gw, store: store, svc: NewSurveyService(form, store, zap.NewNop())}
}

func (f *fixture) validChanges() survey.ChangeSet {
	cs := survey.ChangeSet{
		Demographics: map[string]string{
			"division":   "Operations Division",
			"level":      "Διευθυντής",
			"gender":     "Άνδρας",
			"generation": "Baby Boomers",
			"tenure":     "5–10 έτη",
		},
		Allocations: map[string]int{},
	}
	for _, s := range f.cat.Sections {
		keys := s.AllocationKeys()
		cs.Allocations[keys[0]] = 45
		cs.Allocations[keys[1]] = 35
		cs.Allocations[keys[2]] = 10
		cs.Allocations[keys[3]] = 10
	}
	return cs
}

func TestSurveyLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Start(ctx)
	require.NoError(t, err)
	id := v.SessionID
	assert.NotEmpty(t, id)
	assert.False(t, v.SubmitEnabled)

	_, err = f.svc.Submit(ctx, id)
	require.ErrorIs(t, err, survey.ErrIncomplete)

	v, err = f.svc.Update(ctx, id, f.validChanges())
	require.NoError(t, err)
	assert.True(t, v.SubmitEnabled)
	assert.Empty(t, v.Messages)

	res, err := f.svc.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "memory", res.Gateway)
	assert.Equal(t, "1", res.Ref)
	assert.Equal(t, "Operations Division", res.Record["Division"])
	assert.Equal(t, 45, res.Record["dominant_characteristics_Clan"])
	assert.Equal(t, 1, f.gw.Len())

	v, err = f.svc.View(ctx, id)
	require.NoError(t, err)
	assert.True(t, v.Confirmed)
	assert.True(t, v.ScrollToBottom)
	assert.Zero(t, v.Response.Allocations["dominant_characteristics_Clan"])

	v, err = f.svc.View(ctx, id)
	require.NoError(t, err)
	assert.False(t, v.Confirmed, "confirmation is shown once")

	require.NoError(t, f.svc.Discard(ctx, id))
	_, err = f.svc.View(ctx, id)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, f.svc.Discard(ctx, id), session.ErrNotFound)
}

func TestUpdateRejectsWithoutSaving(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Start(ctx)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, v.SessionID, survey.ChangeSet{Allocations: map[string]int{
		"organization_glue_Clan":   50,
		"organization_glue_Market": 51,
	}})
	var fe *survey.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "organization_glue_Market", fe.Field)

	v, err = f.svc.View(ctx, v.SessionID)
	require.NoError(t, err)
	assert.Zero(t, v.Response.Allocations["organization_glue_Clan"])
}

func TestSubmitGatewayFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Start(ctx)
	require.NoError(t, err)
	id := v.SessionID
	_, err = f.svc.Update(ctx, id, f.validChanges())
	require.NoError(t, err)

	f.gw.FailWith(errors.New("quota exceeded for quota metric"))
	_, err = f.svc.Submit(ctx, id)
	var gwErr *survey.GatewayError
	require.ErrorAs(t, err, &gwErr)

	v, err = f.svc.View(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, v.Error, "quota exceeded for quota metric")
	assert.Equal(t, 45, v.Response.Allocations["dominant_characteristics_Clan"])
	assert.True(t, v.SubmitEnabled)

	f.gw.FailWith(nil)
	_, err = f.svc.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.gw.Len())
}

func TestSubmitWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Start(ctx)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, v.SessionID, f.validChanges())
	require.NoError(t, err)

	unlock, err := f.store.Lock(ctx, v.SessionID, time.Minute)
	require.NoError(t, err)
	f.svc.lockWait = 30 * time.Millisecond

	_, err = f.svc.Submit(ctx, v.SessionID)
	assert.ErrorIs(t, err, survey.ErrSubmitInFlight)
	_, err = f.svc.Update(ctx, v.SessionID, survey.ChangeSet{})
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.ErrorIs(t, f.svc.Discard(ctx, v.SessionID), ErrSessionBusy)
	assert.Zero(t, f.gw.Len())

	require.NoError(t, unlock(ctx))
	_, err = f.svc.Submit(ctx, v.SessionID)
	assert.NoError(t, err)
}

func TestUpdateWaitsForShortLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Start(ctx)
	require.NoError(t, err)

	unlock, err := f.store.Lock(ctx, v.SessionID, time.Minute)
	require.NoError(t, err)
	go func() {
		time.Sleep(50 * time.Millisecond)
		unlock(ctx)
	}()

	v, err = f.svc.Update(ctx, v.SessionID, survey.ChangeSet{Demographics: map[string]string{"level": "Manager"}})
	require.NoError(t, err)
	assert.Equal(t, "Manager", v.Response.Demographics["level"])
}

func TestEditAfterSubmitShowsNoSecondBanner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Start(ctx)
	require.NoError(t, err)
	id := v.SessionID
	_, err = f.svc.Update(ctx, id, f.validChanges())
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, id)
	require.NoError(t, err)

	v, err = f.svc.Update(ctx, id, survey.ChangeSet{Demographics: map[string]string{"gender": "Άλλο"}})
	require.NoError(t, err)
	assert.False(t, v.Confirmed)
	assert.Len(t, v.Messages, 6)

	v, err = f.svc.View(ctx, id)
	require.NoError(t, err)
	assert.False(t, v.Confirmed)
	assert.Equal(t, survey.PhaseEditing, v.Phase)
	assert.Equal(t, "Άλλο", v.Response.Demographics["gender"])
}

// racingStore runs afterGet once, right after a Get returns, to land a
// request between a reader's Get and its Save.
type racingStore struct {
	session.Store
	mu       sync.Mutex
	afterGet func()
}

func (s *racingStore) Get(ctx context.Context, id string) (*survey.Session, error) {
	sess, err := s.Store.Get(ctx, id)
	s.mu.Lock()
	fn := s.afterGet
	s.afterGet = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
	return sess, err
}

func TestViewKeepsConcurrentEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &racingStore{Store: f.store}
	svc := NewSurveyService(survey.NewForm(f.cat, f.gw, survey.WithLocation(time.UTC)), store, zap.NewNop())

	v, err := svc.Start(ctx)
	require.NoError(t, err)
	id := v.SessionID
	_, err = svc.Update(ctx, id, f.validChanges())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, id)
	require.NoError(t, err)

	var editErr error
	store.afterGet = func() {
		_, editErr = svc.Update(ctx, id, survey.ChangeSet{Demographics: map[string]string{"gender": "Άλλο"}})
	}
	_, err = svc.View(ctx, id)
	require.NoError(t, err)
	require.NoError(t, editErr)

	sess, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Άλλο", sess.Response.Demographics["gender"], "the edit must survive the view")
	assert.False(t, sess.JustSubmitted)
}

func TestConcurrentSubmitsAppendOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Start(ctx)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, v.SessionID, f.validChanges())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Submit(ctx, v.SessionID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.gw.Len())
	for _, err := range errs {
		if err != nil {
			// Latecomers see either the in-flight lock or the emptied response.
			assert.True(t, errors.Is(err, survey.ErrSubmitInFlight) || errors.Is(err, survey.ErrIncomplete), err.Error())
		}
	}
}

func TestAdminService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash, err := auth.HashPassword("pa55word")
	require.NoError(t, err)
	admin := NewAdminService("admin@cvf.local", hash, "secret", f.gw, f.cat, zap.NewNop())

	_, err = admin.Login("admin@cvf.local", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = admin.Login("other@cvf.local", "pa55word")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := admin.Login("admin@cvf.local", "pa55word")
	require.NoError(t, err)
	claims, err := auth.ValidateToken("secret", res.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	v, err := f.svc.Start(ctx)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, v.SessionID, f.validChanges())
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, v.SessionID)
	require.NoError(t, err)

	rows, err := admin.Rows(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Operations Division", rows[0]["Division"])

	total, ok, err := admin.Total(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, total)

	var buf bytes.Buffer
	require.NoError(t, admin.Export(ctx, &buf))
	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()
	got, err := wb.GetRows("Responses")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAdminLoginDisabledWithoutHash(t *testing.T) {
	f := newFixture(t)
	admin := NewAdminService("admin@cvf.local", "", "secret", f.gw, f.cat, zap.NewNop())
	_, err := admin.Login("admin@cvf.local", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

type rowsOnly struct{ gateway.Reader }

func TestAdminTotalNeedsCounter(t *testing.T) {
	f := newFixture(t)
	admin := NewAdminService("admin@cvf.local", "", "secret", rowsOnly{f.gw}, f.cat, zap.NewNop())
	_, ok, err := admin.Total(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
