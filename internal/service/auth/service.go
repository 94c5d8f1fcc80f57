package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/physiodesk/clinic-api/internal/config"
	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
	apperrors "github.com/physiodesk/clinic-api/pkg/errors"
	"github.com/physiodesk/clinic-api/pkg/security"
)

// Claims carried in issued tokens. Privileged is the only role distinction
// the engine consumes.
type Claims struct {
	ClinicianID string `json:"clinician_id"`
	ClinicID    string `json:"clinic_id"`
	Privileged  bool   `json:"privileged"`
	jwt.RegisteredClaims
}

type Service struct {
	clinicians repository.ClinicianRepository
	hasher     security.PasswordHasher
	cfg        config.JWTConfig
}

func NewService(clinicians repository.ClinicianRepository, hasher security.PasswordHasher, cfg config.JWTConfig) *Service {
	return &Service{
		clinicians: clinicians,
		hasher:     hasher,
		cfg:        cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Clinician *model.Clinician `json:"clinician"`
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	clinician, err := s.clinicians.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperrors.Unauthorized(fmt.Errorf("invalid credentials"))
	}

	if err := s.hasher.Compare(clinician.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(fmt.Errorf("invalid credentials"))
	}

	expiresAt := time.Now().Add(time.Duration(s.cfg.ExpiryHours) * time.Hour)
	claims := &Claims{
		ClinicianID: clinician.ID.String(),
		ClinicID:    clinician.ClinicID.String(),
		Privileged:  clinician.Privileged,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clinician.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &LoginResponse{Token: token, ExpiresAt: expiresAt, Clinician: clinician}, nil
}

// ValidateToken parses the token and resolves the acting identity.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*model.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized(fmt.Errorf("invalid token claims"))
	}

	id, err := uuid.Parse(claims.ClinicianID)
	if err != nil {
		return nil, apperrors.Unauthorized(fmt.Errorf("invalid clinician id in token"))
	}

	return &model.Actor{ID: id, Privileged: claims.Privileged}, nil
}
