package clinic

import (
	"context"

	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/refdata"
	"github.com/physiodesk/clinic-api/internal/repository"
)

type Service struct {
	repo  repository.ClinicRepository
	cache *refdata.ClinicCache
}

func NewService(repo repository.ClinicRepository, cache *refdata.ClinicCache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) CreateClinic(ctx context.Context, req *model.CreateClinicRequest) (*model.Clinic, error) {
	clinic := &model.Clinic{
		Code:    req.Code,
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
		Status:  "active",
	}
	if err := s.repo.Create(ctx, clinic); err != nil {
		return nil, err
	}
	return clinic, nil
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	return s.cache.Get(ctx, id)
}

func (s *Service) ListClinics(ctx context.Context) ([]*model.Clinic, error) {
	return s.repo.List(ctx)
}
