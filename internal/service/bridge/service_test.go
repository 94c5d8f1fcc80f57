package bridge_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/refdata"
	"github.com/physiodesk/clinic-api/internal/repository/memory"
	"github.com/physiodesk/clinic-api/internal/service/audit"
	"github.com/physiodesk/clinic-api/internal/service/bridge"
	"github.com/physiodesk/clinic-api/internal/service/casestate"
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

type env struct {
	bridge       *bridge.Service
	casestate    *casestate.Service
	ledger       *ledger.Service
	cases        *memory.CaseRepository
	appointments *memory.AppointmentRepository
	outbox       *memory.OutboxRepository

	clinicID uuid.UUID
	actor    model.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	cases := memory.NewCaseRepository()
	courses := memory.NewCourseRepository()
	appointments := memory.NewAppointmentRepository()
	history := memory.NewStatusHistoryRepository()
	audits := memory.NewAuditRepository()
	clinics := memory.NewClinicRepository()
	outbox := memory.NewOutboxRepository()
	tx := memory.NewTxManager()
	l := testLogger()

	clinic := &model.Clinic{Code: "MAIN", Name: "Main Clinic", Status: "active"}
	require.NoError(t, clinics.Create(ctx, clinic))

	ledgerSvc := ledger.NewService(tx, courses, outbox, nil, l)
	recorder := audit.NewRecorder(history, audits)
	caseSvc := casestate.NewService(tx, cases, ledgerSvc, recorder,
		refdata.NewClinicCache(clinics), outbox, nil, l, "")
	bridgeSvc := bridge.NewService(tx, appointments, cases, caseSvc, outbox, nil, l)
	caseSvc.SetAppointmentPropagator(bridgeSvc)

	return &env{
		bridge:       bridgeSvc,
		casestate:    caseSvc,
		ledger:       ledgerSvc,
		cases:        cases,
		appointments: appointments,
		outbox:       outbox,
		clinicID:     clinic.ID,
		actor:        model.Actor{ID: uuid.New()},
	}
}

func (e *env) bookRequest(patientID *uuid.UUID, autoCase bool) *model.CreateAppointmentRequest {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	return &model.CreateAppointmentRequest{
		ClinicID:       e.clinicID,
		ClinicianID:    uuid.New(),
		PatientID:      patientID,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		AutoCreateCase: autoCase,
	}
}

func validSOAP() *model.SOAPNote {
	return &model.SOAPNote{
		Subjective: "Patient reports improvement",
		Objective:  "Full range of motion restored",
		Assessment: "Goals met",
		Plan:       "Discharge with home program",
	}
}

func TestBookAutoCreatesCase(t *testing.T) {
	e := newEnv(t)
	patientID := uuid.New()

	result, err := e.bridge.Book(context.Background(), e.bookRequest(&patientID, true), e.actor)
	require.NoError(t, err)
	require.NotNil(t, result.CaseID)
	assert.True(t, result.Appointment.AutoCreatedCase)

	// Links must point at each other.
	c, err := e.cases.Get(context.Background(), *result.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusPending, c.Status)
	require.NotNil(t, c.AppointmentID)
	assert.Equal(t, result.Appointment.ID, *c.AppointmentID)
	require.NotNil(t, result.Appointment.CaseID)
	assert.Equal(t, c.ID, *result.Appointment.CaseID)

	// Auto-created same-clinic referrals carry identical source and target.
	assert.Equal(t, c.SourceClinicID, c.TargetClinicID)
}

func TestBookWalkInCreatesNoCase(t *testing.T) {
	e := newEnv(t)

	result, err := e.bridge.Book(context.Background(), e.bookRequest(nil, true), e.actor)
	require.NoError(t, err)
	assert.Nil(t, result.CaseID)
	assert.False(t, result.Appointment.AutoCreatedCase)
}

func TestBookWithoutAutoCase(t *testing.T) {
	e := newEnv(t)
	patientID := uuid.New()

	result, err := e.bridge.Book(context.Background(), e.bookRequest(&patientID, false), e.actor)
	require.NoError(t, err)
	assert.Nil(t, result.CaseID)
	assert.Nil(t, result.Appointment.CaseID)
}

func TestBookRejectsBadDuration(t *testing.T) {
	e := newEnv(t)
	patientID := uuid.New()

	req := e.bookRequest(&patientID, false)
	req.EndTime = req.StartTime.Add(5 * time.Minute)
	_, err := e.bridge.Book(context.Background(), req, e.actor)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	req = e.bookRequest(&patientID, false)
	req.EndTime = req.StartTime.Add(5 * time.Hour)
	_, err = e.bridge.Book(context.Background(), req, e.actor)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestBookReportsConflictsWithoutBlocking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	first := e.bookRequest(&patientID, false)
	_, err := e.bridge.Book(ctx, first, e.actor)
	require.NoError(t, err)

	// Same clinician, overlapping window.
	second := e.bookRequest(&patientID, false)
	second.ClinicianID = first.ClinicianID
	second.StartTime = first.StartTime.Add(30 * time.Minute)
	second.EndTime = second.StartTime.Add(time.Hour)

	result, err := e.bridge.Book(ctx, second, e.actor)
	require.NoError(t, err, "overlap is advisory and must not block the booking")
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, model.AppointmentStatusScheduled, result.Appointment.Status)
}

func TestCompleteDrivesCaseThroughLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	result, err := e.bridge.Book(ctx, e.bookRequest(&patientID, true), e.actor)
	require.NoError(t, err)

	caseStatus, err := e.bridge.Complete(ctx, result.Appointment.ID, &model.CompleteAppointmentRequest{
		SOAP: validSOAP(),
	}, e.actor)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, caseStatus)

	appointment, err := e.bridge.Get(ctx, result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, appointment.Status)

	// The pending case is accepted first, then completed; both hops are
	// recorded.
	entries, err := e.casestate.History(ctx, *result.CaseID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.CaseStatusAccepted, entries[0].NewStatus)
	assert.Equal(t, model.CaseStatusCompleted, entries[1].NewStatus)
}

func TestCompleteConsumesCourseSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	course, err := e.ledger.CreateCourse(ctx, &model.CreateCourseRequest{
		PatientID:     patientID,
		ClinicID:      e.clinicID,
		TotalSessions: 8,
	}, e.actor)
	require.NoError(t, err)

	req := e.bookRequest(&patientID, true)
	req.CourseID = &course.ID
	result, err := e.bridge.Book(ctx, req, e.actor)
	require.NoError(t, err)

	_, err = e.bridge.Complete(ctx, result.Appointment.ID, &model.CompleteAppointmentRequest{
		SOAP: validSOAP(),
	}, e.actor)
	require.NoError(t, err)

	got, err := e.ledger.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedSessions)
	assert.Equal(t, 7, got.RemainingSessions)
}

func TestCompleteGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	result, err := e.bridge.Book(ctx, e.bookRequest(&patientID, false), e.actor)
	require.NoError(t, err)

	_, err = e.bridge.Cancel(ctx, result.Appointment.ID, "patient called off", e.actor)
	require.NoError(t, err)

	_, err = e.bridge.Complete(ctx, result.Appointment.ID, &model.CompleteAppointmentRequest{
		SOAP: validSOAP(),
	}, e.actor)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCancelPropagatesToCase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	result, err := e.bridge.Book(ctx, e.bookRequest(&patientID, true), e.actor)
	require.NoError(t, err)

	caseStatus, err := e.bridge.Cancel(ctx, result.Appointment.ID, "clinician unavailable", e.actor)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCancelled, caseStatus)

	c, err := e.cases.Get(ctx, *result.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCancelled, c.Status)

	appointment, err := e.bridge.Get(ctx, result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, appointment.Status)
	require.NotNil(t, appointment.CancelReason)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	result, err := e.bridge.Book(ctx, e.bookRequest(&patientID, false), e.actor)
	require.NoError(t, err)

	_, err = e.bridge.Cancel(ctx, result.Appointment.ID, "first", e.actor)
	require.NoError(t, err)

	_, err = e.bridge.Cancel(ctx, result.Appointment.ID, "second", e.actor)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCaseCancellationPropagatesToAppointment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	result, err := e.bridge.Book(ctx, e.bookRequest(&patientID, true), e.actor)
	require.NoError(t, err)

	// Accept first so the cancel path that mirrors onto appointments runs.
	_, err = e.casestate.Transition(ctx, *result.CaseID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.NoError(t, err)

	_, err = e.casestate.Transition(ctx, *result.CaseID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCancelled,
		Reason:       "patient withdrew consent",
	})
	require.NoError(t, err)

	appointment, err := e.bridge.Get(ctx, result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, appointment.Status)
	require.NotNil(t, appointment.CancelReason)
	assert.Contains(t, *appointment.CancelReason, "patient withdrew consent")
}

func TestCompleteOnMissingCaseIsLinkageError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	result, err := e.bridge.Book(ctx, e.bookRequest(&patientID, false), e.actor)
	require.NoError(t, err)

	// Simulate a dangling link.
	appointment, err := e.appointments.Get(ctx, result.Appointment.ID)
	require.NoError(t, err)
	missing := uuid.New()
	appointment.CaseID = &missing
	require.NoError(t, e.appointments.Update(ctx, appointment))

	_, err = e.bridge.Complete(ctx, result.Appointment.ID, &model.CompleteAppointmentRequest{
		SOAP: validSOAP(),
	}, e.actor)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkageInconsistency))
}

func TestDeleteOnlyCancelledAndUnlinksCase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	result, err := e.bridge.Book(ctx, e.bookRequest(&patientID, true), e.actor)
	require.NoError(t, err)

	err = e.bridge.Delete(ctx, result.Appointment.ID, e.actor)
	require.Error(t, err, "scheduled appointments cannot be deleted")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = e.bridge.Cancel(ctx, result.Appointment.ID, "duplicate booking", e.actor)
	require.NoError(t, err)

	require.NoError(t, e.bridge.Delete(ctx, result.Appointment.ID, e.actor))

	_, err = e.bridge.Get(ctx, result.Appointment.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	c, err := e.cases.Get(ctx, *result.CaseID)
	require.NoError(t, err)
	assert.Nil(t, c.AppointmentID, "the case keeps existing but drops its appointment link")
}

func TestFindConflictsExcludesID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	patientID := uuid.New()

	req := e.bookRequest(&patientID, false)
	result, err := e.bridge.Book(ctx, req, e.actor)
	require.NoError(t, err)

	conflicts, err := e.bridge.FindConflicts(ctx, req.ClinicianID, req.StartTime, req.EndTime, &result.Appointment.ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	conflicts, err = e.bridge.FindConflicts(ctx, req.ClinicianID, req.StartTime, req.EndTime, nil)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestBookingEmitsOutboxEvent(t *testing.T) {
	e := newEnv(t)
	patientID := uuid.New()

	_, err := e.bridge.Book(context.Background(), e.bookRequest(&patientID, true), e.actor)
	require.NoError(t, err)

	var types []string
	for _, evt := range e.outbox.Events() {
		types = append(types, evt.EventType)
	}
	assert.Contains(t, types, model.EventAppointmentBooked)
	assert.Contains(t, types, model.EventCaseAutoCreated)
}
