package casestate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/refdata"
	"github.com/physiodesk/clinic-api/internal/repository"
	"github.com/physiodesk/clinic-api/internal/service/audit"
	"github.com/physiodesk/clinic-api/internal/service/ledger"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
	"github.com/physiodesk/clinic-api/pkg/logger"
	"github.com/physiodesk/clinic-api/pkg/metrics"
)

// AppointmentPropagator mirrors a case-side status change onto the linked
// appointment. Implemented by the appointment bridge; injected after
// construction because the bridge also drives this service.
type AppointmentPropagator interface {
	OnCaseCancelled(ctx context.Context, c *model.Case, actor model.Actor, reason string) error
}

// TransitionRequest carries a target status and the payloads some
// transitions require.
type TransitionRequest struct {
	TargetStatus model.CaseStatus
	Reason       string
	Assessment   *model.AssessmentPayload
	SOAP         *model.SOAPNote
}

type TransitionResult struct {
	NewStatus      model.CaseStatus `json:"new_status"`
	HistoryEntryID uuid.UUID        `json:"history_entry_id"`
}

// Service is the single authority over case status. Every entry point --
// calendar, dashboard, referral UI -- goes through Transition, so each side
// effect (session deduction, return, propagation, audit) happens exactly
// once per transition.
type Service struct {
	tx       repository.TxManager
	cases    repository.CaseRepository
	ledger   *ledger.Service
	recorder *audit.Recorder
	clinics  *refdata.ClinicCache
	outbox   repository.OutboxRepository
	metrics  *metrics.Metrics
	logger   *logger.Logger

	noAssessmentClinicCode string
	propagator             AppointmentPropagator
}

func NewService(
	tx repository.TxManager,
	cases repository.CaseRepository,
	ledgerSvc *ledger.Service,
	recorder *audit.Recorder,
	clinics *refdata.ClinicCache,
	outbox repository.OutboxRepository,
	m *metrics.Metrics,
	l *logger.Logger,
	noAssessmentClinicCode string,
) *Service {
	return &Service{
		tx:                     tx,
		cases:                  cases,
		ledger:                 ledgerSvc,
		recorder:               recorder,
		clinics:                clinics,
		outbox:                 outbox,
		metrics:                m,
		logger:                 l,
		noAssessmentClinicCode: noAssessmentClinicCode,
	}
}

// SetAppointmentPropagator wires the bridge in after both services exist.
func (s *Service) SetAppointmentPropagator(p AppointmentPropagator) {
	s.propagator = p
}

// CreateCase registers a manual referral in PENDING.
func (s *Service) CreateCase(ctx context.Context, req *model.CreateCaseRequest, actor model.Actor) (*model.Case, error) {
	c := &model.Case{
		Code:           newCaseCode(),
		PatientID:      req.PatientID,
		Purpose:        req.Purpose,
		Status:         model.CaseStatusPending,
		SourceClinicID: req.SourceClinicID,
		TargetClinicID: req.TargetClinicID,
		CourseID:       req.CourseID,
		CreatedBy:      actor.ID,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.cases.Create(ctx, c); err != nil {
			return err
		}
		return s.recorder.Log(ctx, actor, c.TargetClinicID,
			model.AuditActionCreate, model.AuditEntityCase, c.ID, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	return s.cases.Get(ctx, id)
}

func (s *Service) ListCases(ctx context.Context, filters *model.CaseFilters) ([]*model.Case, error) {
	return s.cases.List(ctx, filters)
}

func (s *Service) History(ctx context.Context, caseID uuid.UUID) ([]*model.StatusHistoryEntry, error) {
	return s.recorder.History(ctx, caseID)
}

// Transition moves a case along one edge of the state machine. The status
// update, ledger entries, audit entry and any cross-entity propagation
// commit or roll back together.
func (s *Service) Transition(ctx context.Context, caseID uuid.UUID, actor model.Actor, req *TransitionRequest) (*TransitionResult, error) {
	var result *TransitionResult

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.cases.GetForUpdate(ctx, caseID)
		if err != nil {
			return err
		}

		tr, ok := transitionFor(c.Status, req.TargetStatus)
		if !ok {
			return apperrors.InvalidTransition(string(c.Status), string(req.TargetStatus))
		}
		if tr.privileged && !actor.Privileged {
			return apperrors.Forbidden(fmt.Sprintf(
				"transition %s to %s requires a privileged actor", tr.from, tr.to))
		}
		if tr.reasonRequired && strings.TrimSpace(req.Reason) == "" {
			return apperrors.BadRequest(fmt.Sprintf(
				"reason is required for transition %s to %s", tr.from, tr.to), nil)
		}

		if err := tr.apply(s, ctx, c, actor, req); err != nil {
			return err
		}

		old := c.Status
		c.Status = req.TargetStatus
		// A case may only stay flagged reversed while sitting in ACCEPTED.
		if c.Status.IsTerminal() {
			c.IsReversed = false
		}

		if err := s.cases.Update(ctx, c); err != nil {
			return err
		}

		historyID, err := s.recorder.RecordTransition(ctx, c, old, c.Status, actor, req.Reason, tr.isReversal)
		if err != nil {
			return err
		}

		if err := s.emitTransition(ctx, c, old, req.Reason, tr.isReversal); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.CaseTransitions.WithLabelValues(string(old), string(c.Status)).Inc()
			if tr.isReversal {
				s.metrics.CaseReversals.Inc()
			}
		}

		s.logger.Info("case transitioned",
			"case_id", c.ID.String(),
			"from", string(old),
			"to", string(c.Status),
			"actor_id", actor.ID.String())

		result = &TransitionResult{NewStatus: c.Status, HistoryEntryID: historyID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyAccept enforces the clinical-assessment requirement for cross-clinic
// referrals and persists the payload.
func (s *Service) applyAccept(ctx context.Context, c *model.Case, actor model.Actor, req *TransitionRequest) error {
	required, err := s.assessmentRequired(ctx, c)
	if err != nil {
		return err
	}
	if !required {
		return nil
	}

	if req.Assessment == nil {
		return apperrors.IncompleteAssessment("assessment payload required for cross-clinic referral")
	}
	if missing := req.Assessment.MissingField(); missing != "" {
		return apperrors.IncompleteAssessment(missing)
	}

	c.Diagnosis = &req.Assessment.Diagnosis
	c.ChiefComplaint = &req.Assessment.ChiefComplaint
	c.PresentHistory = &req.Assessment.PresentHistory
	painScore := req.Assessment.PainScore
	c.PainScore = &painScore
	return nil
}

// applyComplete requires a full SOAP note and, for course-linked cases,
// consumes one session. The ledger skips the USE when an unreturned one
// already exists, so re-completing after a reversal never double-spends.
func (s *Service) applyComplete(ctx context.Context, c *model.Case, actor model.Actor, req *TransitionRequest) error {
	if req.SOAP == nil {
		return apperrors.IncompleteSOAP("soap note required to complete a case")
	}
	if missing := req.SOAP.MissingField(); missing != "" {
		return apperrors.IncompleteSOAP(missing)
	}

	if c.CourseID != nil {
		if err := s.ledger.UseSession(ctx, *c.CourseID, c.ID, actor); err != nil {
			return err
		}
	}

	return s.recorder.Log(ctx, actor, c.TargetClinicID,
		model.AuditActionUpdate, model.AuditEntityCase, c.ID,
		map[string]interface{}{"soap_note": req.SOAP})
}

func (s *Service) applyCancelFromPending(ctx context.Context, c *model.Case, actor model.Actor, req *TransitionRequest) error {
	return nil
}

// applyCancelFromAccepted returns any consumed session and mirrors the
// cancellation onto a still-scheduled linked appointment.
func (s *Service) applyCancelFromAccepted(ctx context.Context, c *model.Case, actor model.Actor, req *TransitionRequest) error {
	if c.CourseID != nil {
		if err := s.ledger.ReturnSession(ctx, *c.CourseID, c.ID, actor); err != nil {
			return err
		}
	}

	if c.AppointmentID != nil && s.propagator != nil {
		if err := s.propagator.OnCaseCancelled(ctx, c, actor, req.Reason); err != nil {
			return err
		}
	}
	return nil
}

// applyRevertAcceptance undoes an acceptance: the consumed session, if any,
// is returned and the stored assessment is cleared.
func (s *Service) applyRevertAcceptance(ctx context.Context, c *model.Case, actor model.Actor, req *TransitionRequest) error {
	if c.CourseID != nil {
		if err := s.ledger.ReturnSession(ctx, *c.CourseID, c.ID, actor); err != nil {
			return err
		}
	}

	c.Diagnosis = nil
	c.ChiefComplaint = nil
	c.PresentHistory = nil
	c.PainScore = nil
	return nil
}

// applyRevertCompletion corrects an erroneous completion. The session stays
// spent: the case must be re-completed to re-enter COMPLETED, and the
// ledger will not issue a second USE for it.
func (s *Service) applyRevertCompletion(ctx context.Context, c *model.Case, actor model.Actor, req *TransitionRequest) error {
	now := time.Now()
	reason := req.Reason
	c.IsReversed = true
	c.ReversalReason = &reason
	c.ReversedAt = &now
	return nil
}

// assessmentRequired applies the cross-clinic rule: same-clinic referrals
// and referrals into the configured no-assessment clinic are exempt.
func (s *Service) assessmentRequired(ctx context.Context, c *model.Case) (bool, error) {
	if c.SourceClinicID == c.TargetClinicID {
		return false, nil
	}
	if s.noAssessmentClinicCode == "" {
		return true, nil
	}

	code, err := s.clinics.Code(ctx, c.TargetClinicID)
	if err != nil {
		return false, err
	}
	return code != s.noAssessmentClinicCode, nil
}

func (s *Service) emitTransition(ctx context.Context, c *model.Case, old model.CaseStatus, reason string, isReversal bool) error {
	if s.outbox == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"case_id":     c.ID,
		"case_code":   c.Code,
		"patient_id":  c.PatientID,
		"old_status":  old,
		"new_status":  c.Status,
		"reason":      reason,
		"is_reversal": isReversal,
	})
	if err != nil {
		return err
	}
	return s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: model.EventCaseTransitioned,
		Payload:   payload,
	})
}

func newCaseCode() string {
	return fmt.Sprintf("PN-%s-%s",
		time.Now().Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))
}
