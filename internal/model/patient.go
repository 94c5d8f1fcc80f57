package model

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	Base
	ClinicID    uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Name        string     `db:"name" json:"name"`
	Email       string     `db:"email" json:"email,omitempty"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      string     `db:"gender" json:"gender,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
	Status      string     `db:"status" json:"status"`
}

type CreatePatientRequest struct {
	ClinicID    uuid.UUID  `json:"clinic_id" binding:"required"`
	Name        string     `json:"name" binding:"required,max=200"`
	Email       string     `json:"email" binding:"omitempty,email"`
	Phone       string     `json:"phone" binding:"max=32"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" binding:"omitempty,oneof=male female other"`
	Address     string     `json:"address" binding:"max=500"`
}

type PatientFilters struct {
	ClinicID   uuid.UUID
	SearchTerm string
	Status     string
}
