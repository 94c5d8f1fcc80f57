package casestate_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/refdata"
	"github.com/physiodesk/clinic-api/internal/repository/memory"
	"github.com/physiodesk/clinic-api/internal/service/audit"
	"github.com/physiodesk/clinic-api/internal/service/casestate"
	"github.com/physiodesk/clinic-api/internal/service/ledger"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
	"github.com/physiodesk/clinic-api/pkg/logger"
)

const exemptClinicCode = "WELLNESS"

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

type env struct {
	svc     *casestate.Service
	ledger  *ledger.Service
	cases   *memory.CaseRepository
	courses *memory.CourseRepository
	history *memory.StatusHistoryRepository
	outbox  *memory.OutboxRepository

	mainClinic     uuid.UUID
	rehabClinic    uuid.UUID
	wellnessClinic uuid.UUID

	actor model.Actor
	admin model.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	cases := memory.NewCaseRepository()
	courses := memory.NewCourseRepository()
	history := memory.NewStatusHistoryRepository()
	audits := memory.NewAuditRepository()
	clinics := memory.NewClinicRepository()
	outbox := memory.NewOutboxRepository()
	tx := memory.NewTxManager()
	l := testLogger()

	main := &model.Clinic{Code: "MAIN", Name: "Main Clinic", Status: "active"}
	rehab := &model.Clinic{Code: "REHAB", Name: "Rehab Center", Status: "active"}
	wellness := &model.Clinic{Code: exemptClinicCode, Name: "Wellness Studio", Status: "active"}
	require.NoError(t, clinics.Create(ctx, main))
	require.NoError(t, clinics.Create(ctx, rehab))
	require.NoError(t, clinics.Create(ctx, wellness))

	ledgerSvc := ledger.NewService(tx, courses, outbox, nil, l)
	recorder := audit.NewRecorder(history, audits)
	svc := casestate.NewService(tx, cases, ledgerSvc, recorder,
		refdata.NewClinicCache(clinics), outbox, nil, l, exemptClinicCode)

	return &env{
		svc:            svc,
		ledger:         ledgerSvc,
		cases:          cases,
		courses:        courses,
		history:        history,
		outbox:         outbox,
		mainClinic:     main.ID,
		rehabClinic:    rehab.ID,
		wellnessClinic: wellness.ID,
		actor:          model.Actor{ID: uuid.New()},
		admin:          model.Actor{ID: uuid.New(), Privileged: true},
	}
}

func (e *env) newCase(t *testing.T, source, target uuid.UUID, courseID *uuid.UUID) *model.Case {
	t.Helper()
	c, err := e.svc.CreateCase(context.Background(), &model.CreateCaseRequest{
		PatientID:      uuid.New(),
		Purpose:        "Lower back pain treatment",
		SourceClinicID: source,
		TargetClinicID: target,
		CourseID:       courseID,
	}, e.actor)
	require.NoError(t, err)
	return c
}

func (e *env) newCourse(t *testing.T, total int) *model.Course {
	t.Helper()
	course, err := e.ledger.CreateCourse(context.Background(), &model.CreateCourseRequest{
		PatientID:     uuid.New(),
		ClinicID:      e.mainClinic,
		TotalSessions: total,
	}, e.actor)
	require.NoError(t, err)
	return course
}

func validAssessment() *model.AssessmentPayload {
	return &model.AssessmentPayload{
		Diagnosis:      "Lumbar strain",
		ChiefComplaint: "Lower back pain radiating to left leg",
		PresentHistory: "Gradual onset over two weeks after lifting",
		PainScore:      6,
	}
}

func validSOAP() *model.SOAPNote {
	return &model.SOAPNote{
		Subjective: "Patient reports reduced pain",
		Objective:  "Improved lumbar flexion, negative SLR",
		Assessment: "Responding well to treatment",
		Plan:       "Continue program, review in one week",
	}
}

func TestCreateCase(t *testing.T) {
	e := newEnv(t)
	c := e.newCase(t, e.mainClinic, e.rehabClinic, nil)

	assert.Equal(t, model.CaseStatusPending, c.Status)
	assert.True(t, strings.HasPrefix(c.Code, "PN-"))
	assert.False(t, c.IsReversed)
}

func TestInvalidTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		status model.CaseStatus
		target model.CaseStatus
	}{
		{"pending to completed skips acceptance", model.CaseStatusPending, model.CaseStatusCompleted},
		{"completed to pending", model.CaseStatusCompleted, model.CaseStatusPending},
		{"completed to cancelled", model.CaseStatusCompleted, model.CaseStatusCancelled},
		{"cancelled to accepted", model.CaseStatusCancelled, model.CaseStatusAccepted},
		{"cancelled to cancelled", model.CaseStatusCancelled, model.CaseStatusCancelled},
		{"pending to pending", model.CaseStatusPending, model.CaseStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.newCase(t, e.mainClinic, e.mainClinic, nil)
			c.Status = tt.status
			require.NoError(t, e.cases.Update(ctx, c))

			_, err := e.svc.Transition(ctx, c.ID, e.admin, &casestate.TransitionRequest{
				TargetStatus: tt.target,
				Reason:       "test",
			})
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
		})
	}
}

func TestAcceptSameClinicNeedsNoAssessment(t *testing.T) {
	e := newEnv(t)
	c := e.newCase(t, e.mainClinic, e.mainClinic, nil)

	res, err := e.svc.Transition(context.Background(), c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusAccepted, res.NewStatus)
}

func TestAcceptCrossClinicRequiresAssessment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	t.Run("missing payload", func(t *testing.T) {
		c := e.newCase(t, e.mainClinic, e.rehabClinic, nil)
		_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
			TargetStatus: model.CaseStatusAccepted,
		})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrIncompleteAssessment))
	})

	t.Run("missing present history", func(t *testing.T) {
		c := e.newCase(t, e.mainClinic, e.rehabClinic, nil)
		payload := validAssessment()
		payload.PresentHistory = "  "
		_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
			TargetStatus: model.CaseStatusAccepted,
			Assessment:   payload,
		})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrIncompleteAssessment))
	})

	t.Run("pain score out of range", func(t *testing.T) {
		c := e.newCase(t, e.mainClinic, e.rehabClinic, nil)
		payload := validAssessment()
		payload.PainScore = 11
		_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
			TargetStatus: model.CaseStatusAccepted,
			Assessment:   payload,
		})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrIncompleteAssessment))
	})

	t.Run("complete payload accepted and persisted", func(t *testing.T) {
		c := e.newCase(t, e.mainClinic, e.rehabClinic, nil)
		_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
			TargetStatus: model.CaseStatusAccepted,
			Assessment:   validAssessment(),
		})
		require.NoError(t, err)

		got, err := e.svc.GetCase(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Diagnosis)
		assert.Equal(t, "Lumbar strain", *got.Diagnosis)
		require.NotNil(t, got.PainScore)
		assert.Equal(t, 6, *got.PainScore)
	})
}

func TestAcceptExemptClinicNeedsNoAssessment(t *testing.T) {
	e := newEnv(t)
	c := e.newCase(t, e.mainClinic, e.wellnessClinic, nil)

	res, err := e.svc.Transition(context.Background(), c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusAccepted, res.NewStatus)
}

func TestCompleteRequiresSOAP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.newCase(t, e.mainClinic, e.mainClinic, nil)

	_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.NoError(t, err)

	_, err = e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCompleted,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIncompleteSOAP))

	soap := validSOAP()
	soap.Plan = ""
	_, err = e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCompleted,
		SOAP:         soap,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIncompleteSOAP))
}

func TestFullTreatmentFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	course := e.newCourse(t, 10)
	c := e.newCase(t, e.mainClinic, e.rehabClinic, &course.ID)

	_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
		Assessment:   validAssessment(),
	})
	require.NoError(t, err)

	res, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCompleted,
		SOAP:         validSOAP(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, res.NewStatus)

	got, err := e.ledger.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedSessions)
	assert.Equal(t, 9, got.RemainingSessions)

	entries, err := e.svc.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.CaseStatusPending, entries[0].OldStatus)
	assert.Equal(t, model.CaseStatusAccepted, entries[0].NewStatus)
	assert.Equal(t, model.CaseStatusAccepted, entries[1].OldStatus)
	assert.Equal(t, model.CaseStatusCompleted, entries[1].NewStatus)
}

func TestCancelRequiresReason(t *testing.T) {
	e := newEnv(t)
	c := e.newCase(t, e.mainClinic, e.mainClinic, nil)

	_, err := e.svc.Transition(context.Background(), c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCancelled,
		Reason:       "   ",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCancelFromPending(t *testing.T) {
	e := newEnv(t)
	c := e.newCase(t, e.mainClinic, e.mainClinic, nil)

	res, err := e.svc.Transition(context.Background(), c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCancelled,
		Reason:       "patient moved away",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCancelled, res.NewStatus)
}

func TestRevertCompletionKeepsSessionSpent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	course := e.newCourse(t, 10)
	c := e.newCase(t, e.mainClinic, e.mainClinic, &course.ID)

	_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.NoError(t, err)
	_, err = e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCompleted,
		SOAP:         validSOAP(),
	})
	require.NoError(t, err)

	// Non-privileged actors cannot reverse.
	_, err = e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
		Reason:       "entered against wrong patient",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	// Reversals need a reason even for privileged actors.
	_, err = e.svc.Transition(ctx, c.ID, e.admin, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	res, err := e.svc.Transition(ctx, c.ID, e.admin, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
		Reason:       "entered against wrong patient",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusAccepted, res.NewStatus)

	got, err := e.svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsReversed)
	require.NotNil(t, got.ReversalReason)

	// The session stays spent across the reversal.
	courseAfter, err := e.ledger.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, courseAfter.UsedSessions)

	// Re-completing must not consume a second session.
	_, err = e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCompleted,
		SOAP:         validSOAP(),
	})
	require.NoError(t, err)

	courseAfter, err = e.ledger.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, courseAfter.UsedSessions)

	uses := 0
	entries, err := e.ledger.ListEntries(ctx, course.ID)
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.EntryType == model.UsageEntryUse {
			uses++
		}
	}
	assert.Equal(t, 1, uses, "the whole reversal round trip must leave exactly one USE entry")

	// Entering a terminal status clears the reversal flag.
	got, err = e.svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.IsReversed)
}

func TestRevertAcceptanceReturnsSessionAndClearsAssessment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	course := e.newCourse(t, 10)
	c := e.newCase(t, e.mainClinic, e.rehabClinic, &course.ID)

	_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
		Assessment:   validAssessment(),
	})
	require.NoError(t, err)
	_, err = e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusCompleted,
		SOAP:         validSOAP(),
	})
	require.NoError(t, err)

	_, err = e.svc.Transition(ctx, c.ID, e.admin, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
		Reason:       "completed in error",
	})
	require.NoError(t, err)

	res, err := e.svc.Transition(ctx, c.ID, e.admin, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusPending,
		Reason:       "accepted in error",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusPending, res.NewStatus)

	got, err := e.svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Diagnosis)
	assert.Nil(t, got.ChiefComplaint)
	assert.Nil(t, got.PresentHistory)
	assert.Nil(t, got.PainScore)

	courseAfter, err := e.ledger.GetCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, courseAfter.UsedSessions)
	assert.Equal(t, 10, courseAfter.RemainingSessions)
}

func TestHistoryFlagsReversals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.newCase(t, e.mainClinic, e.mainClinic, nil)

	_, err := e.svc.Transition(ctx, c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.NoError(t, err)
	_, err = e.svc.Transition(ctx, c.ID, e.admin, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusPending,
		Reason:       "wrong patient selected",
	})
	require.NoError(t, err)

	entries, err := e.svc.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsReversal)
	assert.True(t, entries[1].IsReversal)
	assert.Equal(t, "wrong patient selected", entries[1].Reason)
	assert.Equal(t, e.admin.ID, entries[1].ActorID)
}

func TestTransitionEmitsOutboxEvent(t *testing.T) {
	e := newEnv(t)
	c := e.newCase(t, e.mainClinic, e.mainClinic, nil)

	_, err := e.svc.Transition(context.Background(), c.ID, e.actor, &casestate.TransitionRequest{
		TargetStatus: model.CaseStatusAccepted,
	})
	require.NoError(t, err)

	var found bool
	for _, evt := range e.outbox.Events() {
		if evt.EventType == model.EventCaseTransitioned {
			found = true
		}
	}
	assert.True(t, found)
}
