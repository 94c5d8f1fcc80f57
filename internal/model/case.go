package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CaseStatus string

const (
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusAccepted   CaseStatus = "accepted"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusCompleted  CaseStatus = "completed"
	CaseStatusCancelled  CaseStatus = "cancelled"
)

// ParseCaseStatus rejects unknown status values at the boundary.
func ParseCaseStatus(s string) (CaseStatus, error) {
	switch CaseStatus(strings.ToLower(s)) {
	case CaseStatusPending, CaseStatusAccepted, CaseStatusInProgress,
		CaseStatusCompleted, CaseStatusCancelled:
		return CaseStatus(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown case status %q", s)
}

// IsTerminal reports whether no forward transition leaves the status.
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusCancelled
}

// Case is a treatment episode referred from a source clinic to a target
// clinic. It is never deleted; cancellation is a terminal status.
type Case struct {
	Base
	Code           string     `db:"code" json:"code"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	Purpose        string     `db:"purpose" json:"purpose"`
	Status         CaseStatus `db:"status" json:"status"`
	SourceClinicID uuid.UUID  `db:"source_clinic_id" json:"source_clinic_id"`
	TargetClinicID uuid.UUID  `db:"target_clinic_id" json:"target_clinic_id"`
	CourseID       *uuid.UUID `db:"course_id" json:"course_id,omitempty"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`

	// Clinical assessment captured at acceptance for cross-clinic referrals.
	Diagnosis      *string `db:"diagnosis" json:"diagnosis,omitempty"`
	ChiefComplaint *string `db:"chief_complaint" json:"chief_complaint,omitempty"`
	PresentHistory *string `db:"present_history" json:"present_history,omitempty"`
	PainScore      *int    `db:"pain_score" json:"pain_score,omitempty"`

	IsReversed     bool       `db:"is_reversed" json:"is_reversed"`
	ReversalReason *string    `db:"reversal_reason" json:"reversal_reason,omitempty"`
	ReversedAt     *time.Time `db:"reversed_at" json:"reversed_at,omitempty"`

	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
}

// AssessmentPayload is required on acceptance when the referral crosses
// clinics (unless the target is the configured no-assessment clinic).
type AssessmentPayload struct {
	Diagnosis      string `json:"diagnosis" binding:"required"`
	ChiefComplaint string `json:"chief_complaint" binding:"required"`
	PresentHistory string `json:"present_history" binding:"required"`
	PainScore      int    `json:"pain_score" binding:"min=0,max=10"`
}

// MissingField returns the name of the first empty required field, or "".
func (p *AssessmentPayload) MissingField() string {
	switch {
	case strings.TrimSpace(p.Diagnosis) == "":
		return "diagnosis"
	case strings.TrimSpace(p.ChiefComplaint) == "":
		return "chief_complaint"
	case strings.TrimSpace(p.PresentHistory) == "":
		return "present_history"
	case p.PainScore < 0 || p.PainScore > 10:
		return "pain_score"
	}
	return ""
}

// SOAPNote is the structured clinical note required to complete a case.
type SOAPNote struct {
	Subjective string `json:"subjective" binding:"required"`
	Objective  string `json:"objective" binding:"required"`
	Assessment string `json:"assessment" binding:"required"`
	Plan       string `json:"plan" binding:"required"`
}

// MissingField returns the name of the first empty section, or "".
func (n *SOAPNote) MissingField() string {
	switch {
	case strings.TrimSpace(n.Subjective) == "":
		return "subjective"
	case strings.TrimSpace(n.Objective) == "":
		return "objective"
	case strings.TrimSpace(n.Assessment) == "":
		return "assessment"
	case strings.TrimSpace(n.Plan) == "":
		return "plan"
	}
	return ""
}

type CreateCaseRequest struct {
	PatientID      uuid.UUID  `json:"patient_id" binding:"required"`
	Purpose        string     `json:"purpose" binding:"required,max=1000"`
	SourceClinicID uuid.UUID  `json:"source_clinic_id" binding:"required"`
	TargetClinicID uuid.UUID  `json:"target_clinic_id" binding:"required"`
	CourseID       *uuid.UUID `json:"course_id"`
}

type CaseFilters struct {
	PatientID      uuid.UUID
	TargetClinicID uuid.UUID
	Status         CaseStatus
}
