package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
	"github.com/physiodesk/clinic-api/pkg/logger"
	"github.com/physiodesk/clinic-api/pkg/metrics"
)

// Service owns a course's session counters and its immutable usage log.
// Counters only move together with an appended entry, inside one
// transaction, so the running sum of entry deltas always equals used.
type Service struct {
	tx      repository.TxManager
	courses repository.CourseRepository
	outbox  repository.OutboxRepository
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(
	tx repository.TxManager,
	courses repository.CourseRepository,
	outbox repository.OutboxRepository,
	m *metrics.Metrics,
	l *logger.Logger,
) *Service {
	return &Service{
		tx:      tx,
		courses: courses,
		outbox:  outbox,
		metrics: m,
		logger:  l,
	}
}

func (s *Service) CreateCourse(ctx context.Context, req *model.CreateCourseRequest, actor model.Actor) (*model.Course, error) {
	course := &model.Course{
		PatientID:         req.PatientID,
		ClinicID:          req.ClinicID,
		TotalSessions:     req.TotalSessions,
		UsedSessions:      0,
		RemainingSessions: req.TotalSessions,
		Price:             req.Price,
		PaidAmount:        req.PaidAmount,
		PurchasedAt:       time.Now(),
		ExpiresAt:         req.ExpiresAt,
		Status:            model.CourseStatusActive,
		CreatedBy:         actor.ID,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.courses.Create(ctx, course)
	})
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (s *Service) GetCourse(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	course, err := s.courses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Lazy expiry: a course past its expiry date reads as EXPIRED even if
	// no write has flipped the row yet.
	if course.Status == model.CourseStatusActive && isExpired(course) {
		course.Status = model.CourseStatusExpired
	}
	return course, nil
}

func (s *Service) ListEntries(ctx context.Context, courseID uuid.UUID) ([]*model.CourseUsageEntry, error) {
	return s.courses.ListEntries(ctx, courseID)
}

// UseSession consumes one session of the course for the given case. At most
// one USE may be outstanding per case: if an unreturned USE already exists
// the call is a success no-op, so retried client requests stay harmless.
func (s *Service) UseSession(ctx context.Context, courseID, caseID uuid.UUID, actor model.Actor) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := s.courses.GetForUpdate(ctx, courseID)
		if err != nil {
			return err
		}

		outstanding, err := s.outstandingUse(ctx, courseID, caseID)
		if err != nil {
			return err
		}
		if outstanding {
			s.logger.Debug("use skipped, unreturned USE already exists",
				"course_id", courseID.String(), "case_id", caseID.String())
			return nil
		}

		if course.RemainingSessions < 1 {
			s.countRejection("insufficient_sessions")
			return apperrors.InsufficientSessions(course.RemainingSessions, 1)
		}

		course.UsedSessions++
		course.RemainingSessions--
		if course.RemainingSessions == 0 {
			course.Status = model.CourseStatusCompleted
		}

		if err := s.courses.Update(ctx, course); err != nil {
			return err
		}

		entry := &model.CourseUsageEntry{
			CourseID:  courseID,
			CaseID:    &caseID,
			EntryType: model.UsageEntryUse,
			Delta:     1,
			UsageDate: time.Now(),
			CreatedBy: actor.ID,
		}
		if err := s.courses.AppendEntry(ctx, entry); err != nil {
			return err
		}

		s.countEntry(model.UsageEntryUse)
		s.observeRemaining(course.RemainingSessions)
		return s.emit(ctx, model.EventSessionUsed, map[string]interface{}{
			"course_id": courseID,
			"case_id":   caseID,
			"remaining": course.RemainingSessions,
		})
	})
}

// ReturnSession gives back the session consumed for the given case. A
// RETURN is only issued when a matching unreturned USE exists; returning
// twice for the same case is a success no-op. The check goes through entry
// history, never caller intent.
func (s *Service) ReturnSession(ctx context.Context, courseID, caseID uuid.UUID, actor model.Actor) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := s.courses.GetForUpdate(ctx, courseID)
		if err != nil {
			return err
		}

		outstanding, err := s.outstandingUse(ctx, courseID, caseID)
		if err != nil {
			return err
		}
		if !outstanding {
			s.logger.Debug("return skipped, no unreturned USE for case",
				"course_id", courseID.String(), "case_id", caseID.String())
			return nil
		}

		if course.UsedSessions < 1 {
			s.countRejection("over_return")
			return apperrors.OverReturn(course.UsedSessions, 1)
		}

		course.UsedSessions--
		course.RemainingSessions++
		if (course.Status == model.CourseStatusCompleted || course.Status == model.CourseStatusExpired) &&
			course.RemainingSessions > 0 && !isExpired(course) {
			course.Status = model.CourseStatusActive
		}

		if err := s.courses.Update(ctx, course); err != nil {
			return err
		}

		entry := &model.CourseUsageEntry{
			CourseID:  courseID,
			CaseID:    &caseID,
			EntryType: model.UsageEntryReturn,
			Delta:     -1,
			UsageDate: time.Now(),
			CreatedBy: actor.ID,
		}
		if err := s.courses.AppendEntry(ctx, entry); err != nil {
			return err
		}

		s.countEntry(model.UsageEntryReturn)
		s.observeRemaining(course.RemainingSessions)
		return s.emit(ctx, model.EventSessionReturned, map[string]interface{}{
			"course_id": courseID,
			"case_id":   caseID,
			"remaining": course.RemainingSessions,
		})
	})
}

// Adjust applies a manual correction outside any case linkage. Reserved for
// privileged actors; the counters must stay non-negative.
func (s *Service) Adjust(ctx context.Context, courseID uuid.UUID, delta int, reason string, actor model.Actor) error {
	if !actor.Privileged {
		return apperrors.Forbidden("manual adjustment requires a privileged actor")
	}
	if delta == 0 {
		return apperrors.BadRequest("adjustment delta must be non-zero", nil)
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := s.courses.GetForUpdate(ctx, courseID)
		if err != nil {
			return err
		}

		newUsed := course.UsedSessions + delta
		if newUsed < 0 {
			s.countRejection("over_return")
			return apperrors.OverReturn(course.UsedSessions, -delta)
		}
		newRemaining := course.TotalSessions - newUsed
		if newRemaining < 0 {
			s.countRejection("insufficient_sessions")
			return apperrors.InsufficientSessions(course.RemainingSessions, delta)
		}

		course.UsedSessions = newUsed
		course.RemainingSessions = newRemaining
		switch {
		case newRemaining == 0:
			course.Status = model.CourseStatusCompleted
		case course.Status == model.CourseStatusCompleted && newRemaining > 0 && !isExpired(course):
			course.Status = model.CourseStatusActive
		}

		if err := s.courses.Update(ctx, course); err != nil {
			return err
		}

		entry := &model.CourseUsageEntry{
			CourseID:  courseID,
			EntryType: model.UsageEntryAdjust,
			Delta:     delta,
			Reason:    reason,
			UsageDate: time.Now(),
			CreatedBy: actor.ID,
		}
		if err := s.courses.AppendEntry(ctx, entry); err != nil {
			return err
		}

		s.countEntry(model.UsageEntryAdjust)
		s.observeRemaining(course.RemainingSessions)
		return s.emit(ctx, model.EventCourseAdjusted, map[string]interface{}{
			"course_id": courseID,
			"delta":     delta,
			"reason":    reason,
		})
	})
}

// HasOutstandingUse reports whether an unreturned USE entry exists for the
// case on the given course.
func (s *Service) HasOutstandingUse(ctx context.Context, courseID, caseID uuid.UUID) (bool, error) {
	return s.outstandingUse(ctx, courseID, caseID)
}

func (s *Service) outstandingUse(ctx context.Context, courseID, caseID uuid.UUID) (bool, error) {
	entries, err := s.courses.ListEntriesForCase(ctx, courseID, caseID)
	if err != nil {
		return false, err
	}
	balance := 0
	for _, e := range entries {
		balance += e.Delta
	}
	return balance > 0, nil
}

func isExpired(course *model.Course) bool {
	return course.ExpiresAt != nil && course.ExpiresAt.Before(time.Now())
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

func (s *Service) countEntry(t model.UsageEntryType) {
	if s.metrics != nil {
		s.metrics.LedgerEntries.WithLabelValues(string(t)).Inc()
	}
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.LedgerRejections.WithLabelValues(reason).Inc()
	}
}

func (s *Service) observeRemaining(remaining int) {
	if s.metrics != nil {
		s.metrics.SessionsRemaining.Set(float64(remaining))
	}
}
