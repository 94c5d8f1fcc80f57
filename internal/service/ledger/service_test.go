package ledger_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository/memory"
	"github.com/physiodesk/clinic-api/internal/service/ledger"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
	"github.com/physiodesk/clinic-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

type ledgerEnv struct {
	svc     *ledger.Service
	courses *memory.CourseRepository
	outbox  *memory.OutboxRepository
	actor   model.Actor
	admin   model.Actor
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	courses := memory.NewCourseRepository()
	outbox := memory.NewOutboxRepository()
	svc := ledger.NewService(memory.NewTxManager(), courses, outbox, nil, testLogger())
	return &ledgerEnv{
		svc:     svc,
		courses: courses,
		outbox:  outbox,
		actor:   model.Actor{ID: uuid.New()},
		admin:   model.Actor{ID: uuid.New(), Privileged: true},
	}
}

func (e *ledgerEnv) newCourse(t *testing.T, total int) *model.Course {
	t.Helper()
	course, err := e.svc.CreateCourse(context.Background(), &model.CreateCourseRequest{
		PatientID:     uuid.New(),
		ClinicID:      uuid.New(),
		TotalSessions: total,
		Price:         float64(total) * 50,
		PaidAmount:    float64(total) * 50,
	}, e.actor)
	require.NoError(t, err)
	return course
}

func TestCreateCourse(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 10)

	assert.Equal(t, 10, course.TotalSessions)
	assert.Equal(t, 0, course.UsedSessions)
	assert.Equal(t, 10, course.RemainingSessions)
	assert.Equal(t, model.CourseStatusActive, course.Status)
}

func TestUseSession(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 10)
	caseID := uuid.New()
	ctx := context.Background()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseID, env.actor))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedSessions)
	assert.Equal(t, 9, got.RemainingSessions)

	entries, err := env.svc.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.UsageEntryUse, entries[0].EntryType)
	assert.Equal(t, 1, entries[0].Delta)
	require.NotNil(t, entries[0].CaseID)
	assert.Equal(t, caseID, *entries[0].CaseID)
}

func TestUseSessionIdempotentPerCase(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 10)
	caseID := uuid.New()
	ctx := context.Background()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseID, env.actor))
	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseID, env.actor))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedSessions, "second use for the same case must be a no-op")

	entries, err := env.svc.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUseSessionInsufficient(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 1)
	ctx := context.Background()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, uuid.New(), env.actor))

	err := env.svc.UseSession(ctx, course.ID, uuid.New(), env.actor)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientSessions))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RemainingSessions)
	assert.Equal(t, model.CourseStatusCompleted, got.Status)
}

func TestReturnSessionRoundTrip(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 5)
	caseID := uuid.New()
	ctx := context.Background()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseID, env.actor))
	require.NoError(t, env.svc.ReturnSession(ctx, course.ID, caseID, env.actor))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsedSessions)
	assert.Equal(t, 5, got.RemainingSessions)

	// The log keeps both movements; nothing is edited away.
	entries, err := env.svc.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	sum := 0
	for _, e := range entries {
		sum += e.Delta
	}
	assert.Equal(t, 0, sum)
}

func TestReturnSessionIdempotent(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 5)
	caseID := uuid.New()
	ctx := context.Background()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseID, env.actor))
	require.NoError(t, env.svc.ReturnSession(ctx, course.ID, caseID, env.actor))
	require.NoError(t, env.svc.ReturnSession(ctx, course.ID, caseID, env.actor))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsedSessions)
	assert.Equal(t, 5, got.RemainingSessions)

	entries, err := env.svc.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "duplicate return must not append an entry")
}

func TestReturnWithoutUseIsNoOp(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 5)
	ctx := context.Background()

	require.NoError(t, env.svc.ReturnSession(ctx, course.ID, uuid.New(), env.actor))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsedSessions)
	assert.Equal(t, 5, got.RemainingSessions)

	entries, err := env.svc.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExhaustionAndReactivation(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 2)
	ctx := context.Background()
	caseA, caseB := uuid.New(), uuid.New()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseA, env.actor))
	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseB, env.actor))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CourseStatusCompleted, got.Status)

	err = env.svc.UseSession(ctx, course.ID, uuid.New(), env.actor)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientSessions))

	// Returning one session reopens the course.
	require.NoError(t, env.svc.ReturnSession(ctx, course.ID, caseB, env.actor))
	got, err = env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CourseStatusActive, got.Status)
	assert.Equal(t, 1, got.RemainingSessions)
}

func TestAdjustRequiresPrivilege(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 5)

	err := env.svc.Adjust(context.Background(), course.ID, 1, "billing correction", env.actor)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestAdjust(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 5)
	ctx := context.Background()

	require.NoError(t, env.svc.Adjust(ctx, course.ID, 2, "migrated usage from old system", env.admin))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedSessions)
	assert.Equal(t, 3, got.RemainingSessions)

	entries, err := env.svc.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.UsageEntryAdjust, entries[0].EntryType)
	assert.Equal(t, 2, entries[0].Delta)
	assert.Equal(t, "migrated usage from old system", entries[0].Reason)
}

func TestAdjustBounds(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 3)
	ctx := context.Background()

	err := env.svc.Adjust(ctx, course.ID, -1, "oops", env.admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrOverReturn),
		"negative used must be rejected")

	err = env.svc.Adjust(ctx, course.ID, 4, "too much", env.admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientSessions),
		"negative remaining must be rejected")

	err = env.svc.Adjust(ctx, course.ID, 0, "nothing", env.admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCountersMatchEntrySum(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 10)
	ctx := context.Background()
	caseA, caseB := uuid.New(), uuid.New()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseA, env.actor))
	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseB, env.actor))
	require.NoError(t, env.svc.ReturnSession(ctx, course.ID, caseA, env.actor))
	require.NoError(t, env.svc.Adjust(ctx, course.ID, 3, "bulk import", env.admin))

	got, err := env.svc.GetCourse(ctx, course.ID)
	require.NoError(t, err)

	entries, err := env.svc.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	sum := 0
	for _, e := range entries {
		sum += e.Delta
	}
	assert.Equal(t, got.UsedSessions, sum)
	assert.Equal(t, got.TotalSessions-got.UsedSessions, got.RemainingSessions)
}

func TestLazyExpiry(t *testing.T) {
	env := newLedgerEnv(t)
	past := time.Now().Add(-24 * time.Hour)
	course, err := env.svc.CreateCourse(context.Background(), &model.CreateCourseRequest{
		PatientID:     uuid.New(),
		ClinicID:      uuid.New(),
		TotalSessions: 5,
		ExpiresAt:     &past,
	}, env.actor)
	require.NoError(t, err)

	got, err := env.svc.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CourseStatusExpired, got.Status)
}

func TestLedgerEmitsOutboxEvents(t *testing.T) {
	env := newLedgerEnv(t)
	course := env.newCourse(t, 5)
	caseID := uuid.New()
	ctx := context.Background()

	require.NoError(t, env.svc.UseSession(ctx, course.ID, caseID, env.actor))
	require.NoError(t, env.svc.ReturnSession(ctx, course.ID, caseID, env.actor))

	var types []string
	for _, e := range env.outbox.Events() {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.EventSessionUsed)
	assert.Contains(t, types, model.EventSessionReturned)
}
