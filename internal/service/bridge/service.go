package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
	"github.com/physiodesk/clinic-api/internal/service/casestate"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
	"github.com/physiodesk/clinic-api/pkg/logger"
	"github.com/physiodesk/clinic-api/pkg/metrics"
)

const (
	// System reasons for automatic propagations.
	reasonAcceptedFromAppointment  = "Accepted from appointment"
	reasonCompletedFromAppointment = "Completed from appointment"
	reasonCancelledFromAppointment = "Cancelled from appointment"
	reasonCancelledFromCase        = "Cancelled from case"

	MinAppointmentDuration = 15 * time.Minute
	MaxAppointmentDuration = 4 * time.Hour
)

// Service keeps an appointment and its linked case status-consistent in
// both directions. It is the only code that touches the link from either
// side, so the two records cannot drift apart.
type Service struct {
	tx           repository.TxManager
	appointments repository.AppointmentRepository
	cases        repository.CaseRepository
	casestate    *casestate.Service
	outbox       repository.OutboxRepository
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

func NewService(
	tx repository.TxManager,
	appointments repository.AppointmentRepository,
	cases repository.CaseRepository,
	casestateSvc *casestate.Service,
	outbox repository.OutboxRepository,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		tx:           tx,
		appointments: appointments,
		cases:        cases,
		casestate:    casestateSvc,
		outbox:       outbox,
		metrics:      m,
		logger:       l,
	}
}

// BookResult is the outcome of a booking, including the auto-created case
// id when one was requested.
type BookResult struct {
	Appointment *model.Appointment   `json:"appointment"`
	CaseID      *uuid.UUID           `json:"case_id,omitempty"`
	Conflicts   []*model.Appointment `json:"conflicts,omitempty"`
}

// Book creates an appointment and, when requested for a known patient,
// auto-creates a PENDING case linked to it in both directions. The conflict
// check is advisory: overlaps are reported, not blocking.
func (s *Service) Book(ctx context.Context, req *model.CreateAppointmentRequest, actor model.Actor) (*BookResult, error) {
	if err := validateTimes(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	conflicts, err := s.FindConflicts(ctx, req.ClinicianID, req.StartTime, req.EndTime, nil)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.logger.Warn("booking overlaps existing appointments",
			"clinician_id", req.ClinicianID.String(), "conflicts", len(conflicts))
	}

	appointment := &model.Appointment{
		ClinicID:    req.ClinicID,
		ClinicianID: req.ClinicianID,
		PatientID:   req.PatientID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      model.AppointmentStatusScheduled,
		Notes:       req.Notes,
		CourseID:    req.CourseID,
	}

	var caseID *uuid.UUID
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.Create(ctx, appointment); err != nil {
			return err
		}

		// Walk-ins have no patient record, so there is nothing to open a
		// case against.
		if req.AutoCreateCase && req.PatientID != nil {
			c, err := s.casestate.CreateCase(ctx, &model.CreateCaseRequest{
				PatientID:      *req.PatientID,
				Purpose:        fmt.Sprintf("Treatment session booked for %s", req.StartTime.Format("2006-01-02 15:04")),
				SourceClinicID: req.ClinicID,
				TargetClinicID: req.ClinicID,
				CourseID:       req.CourseID,
			}, actor)
			if err != nil {
				return err
			}

			c.AppointmentID = &appointment.ID
			if err := s.cases.Update(ctx, c); err != nil {
				return err
			}

			appointment.CaseID = &c.ID
			appointment.AutoCreatedCase = true
			if err := s.appointments.Update(ctx, appointment); err != nil {
				return err
			}

			caseID = &c.ID
			if s.metrics != nil {
				s.metrics.CasesAutoCreated.Inc()
			}
			if err := s.emit(ctx, model.EventCaseAutoCreated, map[string]interface{}{
				"case_id":        c.ID,
				"appointment_id": appointment.ID,
			}); err != nil {
				return err
			}
		}

		return s.emit(ctx, model.EventAppointmentBooked, map[string]interface{}{
			"appointment_id": appointment.ID,
			"clinic_id":      appointment.ClinicID,
			"clinician_id":   appointment.ClinicianID,
			"patient_id":     appointment.PatientID,
			"start_time":     appointment.StartTime,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentsBooked.Inc()
	}
	return &BookResult{Appointment: appointment, CaseID: caseID, Conflicts: conflicts}, nil
}

// Complete marks the appointment completed and drives the linked case to
// COMPLETED, collecting the clinical payloads from the same user action.
// PENDING cases are accepted first; each hop writes its own history entry.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, req *model.CompleteAppointmentRequest, actor model.Actor) (model.CaseStatus, error) {
	var caseStatus model.CaseStatus

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		appointment, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		switch appointment.Status {
		case model.AppointmentStatusCompleted:
			return apperrors.BadRequest("appointment is already completed", nil)
		case model.AppointmentStatusCancelled:
			return apperrors.BadRequest("cannot complete a cancelled appointment", nil)
		}

		appointment.Status = model.AppointmentStatusCompleted
		if err := s.appointments.Update(ctx, appointment); err != nil {
			return err
		}

		if appointment.CaseID != nil {
			status, err := s.driveCaseToCompleted(ctx, *appointment.CaseID, appointment.ID, actor, req)
			if err != nil {
				s.countPropagationFailure("appointment_to_case")
				return err
			}
			caseStatus = status
		}

		return s.emit(ctx, model.EventAppointmentDone, map[string]interface{}{
			"appointment_id": appointment.ID,
			"case_id":        appointment.CaseID,
			"case_status":    caseStatus,
		})
	})
	if err != nil {
		return "", err
	}
	return caseStatus, nil
}

func (s *Service) driveCaseToCompleted(ctx context.Context, caseID, appointmentID uuid.UUID, actor model.Actor, req *model.CompleteAppointmentRequest) (model.CaseStatus, error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.LinkageInconsistency(fmt.Sprintf(
				"appointment %s references missing case %s", appointmentID, caseID))
		}
		return "", err
	}

	status := c.Status
	if status == model.CaseStatusPending {
		res, err := s.casestate.Transition(ctx, c.ID, actor, &casestate.TransitionRequest{
			TargetStatus: model.CaseStatusAccepted,
			Reason:       reasonAcceptedFromAppointment,
			Assessment:   req.Assessment,
		})
		if err != nil {
			return "", err
		}
		status = res.NewStatus
	}

	if status == model.CaseStatusAccepted {
		res, err := s.casestate.Transition(ctx, c.ID, actor, &casestate.TransitionRequest{
			TargetStatus: model.CaseStatusCompleted,
			Reason:       reasonCompletedFromAppointment,
			SOAP:         req.SOAP,
		})
		if err != nil {
			return "", err
		}
		status = res.NewStatus
	}

	return status, nil
}

// Cancel marks the appointment cancelled and drives a linked non-terminal
// case to CANCELLED, which in turn returns any consumed session.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actor model.Actor) (model.CaseStatus, error) {
	var caseStatus model.CaseStatus

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		appointment, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		switch appointment.Status {
		case model.AppointmentStatusCancelled:
			return apperrors.BadRequest("appointment is already cancelled", nil)
		case model.AppointmentStatusCompleted:
			return apperrors.BadRequest("cannot cancel a completed appointment", nil)
		}

		now := time.Now()
		appointment.Status = model.AppointmentStatusCancelled
		appointment.CancelReason = &reason
		appointment.CancelledBy = &actor.ID
		appointment.CancelledAt = &now
		if err := s.appointments.Update(ctx, appointment); err != nil {
			return err
		}

		if appointment.CaseID != nil {
			c, err := s.cases.Get(ctx, *appointment.CaseID)
			if err != nil {
				if apperrors.Is(err, apperrors.ErrNotFound) {
					return apperrors.LinkageInconsistency(fmt.Sprintf(
						"appointment %s references missing case %s", appointment.ID, *appointment.CaseID))
				}
				return err
			}

			if !c.Status.IsTerminal() {
				res, err := s.casestate.Transition(ctx, c.ID, actor, &casestate.TransitionRequest{
					TargetStatus: model.CaseStatusCancelled,
					Reason:       reasonCancelledFromAppointment,
				})
				if err != nil {
					s.countPropagationFailure("appointment_to_case")
					return err
				}
				caseStatus = res.NewStatus
			} else {
				caseStatus = c.Status
			}
		}

		return s.emit(ctx, model.EventAppointmentVoid, map[string]interface{}{
			"appointment_id": appointment.ID,
			"patient_id":     appointment.PatientID,
			"reason":         reason,
		})
	})
	if err != nil {
		return "", err
	}
	return caseStatus, nil
}

// OnCaseCancelled implements casestate.AppointmentPropagator: cancelling a
// case cancels its still-scheduled appointment so no orphaned slot remains.
// Runs inside the case transition's transaction.
func (s *Service) OnCaseCancelled(ctx context.Context, c *model.Case, actor model.Actor, reason string) error {
	if c.AppointmentID == nil {
		return nil
	}

	appointment, err := s.appointments.GetForUpdate(ctx, *c.AppointmentID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.countPropagationFailure("case_to_appointment")
			return apperrors.LinkageInconsistency(fmt.Sprintf(
				"case %s references missing appointment %s", c.ID, *c.AppointmentID))
		}
		return err
	}

	if appointment.Status != model.AppointmentStatusScheduled &&
		appointment.Status != model.AppointmentStatusConfirmed {
		return nil
	}

	now := time.Now()
	systemReason := reasonCancelledFromCase
	if reason != "" {
		systemReason = fmt.Sprintf("%s: %s", reasonCancelledFromCase, reason)
	}
	appointment.Status = model.AppointmentStatusCancelled
	appointment.CancelReason = &systemReason
	appointment.CancelledBy = &actor.ID
	appointment.CancelledAt = &now

	if err := s.appointments.Update(ctx, appointment); err != nil {
		s.countPropagationFailure("case_to_appointment")
		return err
	}

	return s.emit(ctx, model.EventAppointmentVoid, map[string]interface{}{
		"appointment_id": appointment.ID,
		"patient_id":     appointment.PatientID,
		"reason":         systemReason,
	})
}

// Delete removes a cancelled appointment and nulls the case's link to it
// rather than cascading.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor model.Actor) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		appointment, err := s.appointments.Get(ctx, id)
		if err != nil {
			return err
		}
		if appointment.Status != model.AppointmentStatusCancelled {
			return apperrors.BadRequest("can only delete cancelled appointments", nil)
		}

		if appointment.CaseID != nil {
			c, err := s.cases.GetForUpdate(ctx, *appointment.CaseID)
			if err != nil {
				if apperrors.Is(err, apperrors.ErrNotFound) {
					return apperrors.LinkageInconsistency(fmt.Sprintf(
						"appointment %s references missing case %s", appointment.ID, *appointment.CaseID))
				}
				return err
			}
			c.AppointmentID = nil
			if err := s.cases.Update(ctx, c); err != nil {
				return err
			}
		}

		return s.appointments.Delete(ctx, id)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.appointments.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.appointments.List(ctx, filters)
}

// FindConflicts reports every overlapping scheduled or confirmed
// appointment for the clinician, not just the first.
func (s *Service) FindConflicts(ctx context.Context, clinicianID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	conflicts, err := s.appointments.FindConflicting(ctx, clinicianID, start, end, excludeID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ConflictChecksTotal.Inc()
		s.metrics.ConflictsFoundTotal.Add(float64(len(conflicts)))
	}
	return conflicts, nil
}

func validateTimes(start, end time.Time) error {
	duration := end.Sub(start)
	if duration < MinAppointmentDuration || duration > MaxAppointmentDuration {
		return apperrors.BadRequest(fmt.Sprintf(
			"appointment duration must be between %v and %v", MinAppointmentDuration, MaxAppointmentDuration), nil)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, eventType string, payload map[string]interface{}) error {
	if s.outbox == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   raw,
	})
}

func (s *Service) countPropagationFailure(direction string) {
	if s.metrics != nil {
		s.metrics.PropagationFailures.WithLabelValues(direction).Inc()
	}
}
