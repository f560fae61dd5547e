package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound       = errors.New("patient not found")
	ErrDoctorNotFound        = errors.New("doctor not found")
	ErrDuplicateCode         = errors.New("profile code already in use")
	ErrDuplicateRegistration = errors.New("registration number already registered")
)

// PatientRepository defines the persistence interface for patient profiles.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Patient, error)
	GetByPatientCode(ctx context.Context, code string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SetDigitalCard(ctx context.Context, id uuid.UUID, cardURL string) error
	Search(ctx context.Context, query string, limit int) ([]*Patient, error)
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error
}

// DoctorRepository defines the persistence interface for doctor profiles.
type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Doctor, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error
}
