package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
	"github.com/physiodesk/clinic-api/internal/service/audit"
)

type Service struct {
	repo     repository.PatientRepository
	recorder *audit.Recorder
}

func NewService(repo repository.PatientRepository, recorder *audit.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest, actor model.Actor) (*model.Patient, error) {
	patient := &model.Patient{
		ClinicID:    req.ClinicID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Address:     req.Address,
		Status:      "active",
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}

	if err := s.recorder.Log(ctx, actor, patient.ClinicID,
		model.AuditActionCreate, model.AuditEntityPatient, patient.ID, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, patient *model.Patient, actor model.Actor) error {
	if err := s.repo.Update(ctx, patient); err != nil {
		return err
	}
	return s.recorder.Log(ctx, actor, patient.ClinicID,
		model.AuditActionUpdate, model.AuditEntityPatient, patient.ID, patient)
}

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	return s.repo.List(ctx, filters)
}
