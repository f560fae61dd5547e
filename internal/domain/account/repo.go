package account

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Repository is the credential store.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Create(ctx context.Context, a *Account) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	UpdateApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus, verified bool, reviewer uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Account, int, error)
	ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*Account, int, error)
	CountByRole(ctx context.Context) (map[auth.Role]int, error)
	CountDoctorsByStatus(ctx context.Context) (map[ApprovalStatus]int, error)
}
