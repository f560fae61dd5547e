package admin

import (
	"context"

	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
)

// DoctorDirectory lists doctor accounts with their profiles.
type DoctorDirectory interface {
	// ListDoctors returns doctors newest first. An empty status matches all.
	ListDoctors(ctx context.Context, status account.ApprovalStatus, limit, offset int) ([]*DoctorListing, int, error)
}
