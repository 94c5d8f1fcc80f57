package model

import "github.com/google/uuid"

type Clinic struct {
	Base
	Code    string `db:"code" json:"code"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address,omitempty"`
	Phone   string `db:"phone" json:"phone,omitempty"`
	Status  string `db:"status" json:"status"`
}

type CreateClinicRequest struct {
	Code    string `json:"code" binding:"required,max=16"`
	Name    string `json:"name" binding:"required,max=200"`
	Address string `json:"address" binding:"max=500"`
	Phone   string `json:"phone" binding:"max=32"`
}

// Clinician is a treating staff member. Privileged clinicians may perform
// reversal transitions and manual ledger adjustments.
type Clinician struct {
	Base
	ClinicID     uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Privileged   bool      `db:"privileged" json:"privileged"`
	Status       string    `db:"status" json:"status"`
}
