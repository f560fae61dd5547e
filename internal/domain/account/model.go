package account

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
)

// ApprovalStatus is the review state of a doctor account.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

var ErrInvalidTransition = errors.New("invalid approval transition")

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move a doctor from s to next.
// Approving and rejecting are idempotent; a rejected doctor cannot be
// approved, and nothing returns to pending.
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	switch next {
	case ApprovalApproved:
		return s == ApprovalPending || s == ApprovalApproved
	case ApprovalRejected:
		return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
	}
	return false
}

// Account maps to the accounts table. ApprovalStatus is set for doctors
// only, and IsVerified mirrors it: a doctor is verified iff approved.
type Account struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	Email          string         `db:"email" json:"email"`
	PasswordHash   string         `db:"password_hash" json:"-"`
	Role           auth.Role      `db:"role" json:"role"`
	IsVerified     bool           `db:"is_verified" json:"isVerified"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approvalStatus,omitempty"`
	ReviewedBy     *uuid.UUID     `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time     `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// Transition moves a doctor account to next, keeping IsVerified in step.
func (a *Account) Transition(next ApprovalStatus) error {
	if a.Role != auth.RoleDoctor || !a.ApprovalStatus.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	a.ApprovalStatus = next
	a.IsVerified = next == ApprovalApproved
	return nil
}
