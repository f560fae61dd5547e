package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
)

type Service struct {
	accounts  account.Repository
	directory DoctorDirectory
	logger    zerolog.Logger
}

func NewService(accounts account.Repository, directory DoctorDirectory, logger zerolog.Logger) *Service {
	return &Service{
		accounts:  accounts,
		directory: directory,
		logger:    logger.With().Str("component", "admin").Logger(),
	}
}

// -- Approval workflow --

func (s *Service) ApproveDoctor(ctx context.Context, reviewer, doctorAccountID uuid.UUID) (*account.Account, error) {
	return s.UpdateDoctorStatus(ctx, reviewer, doctorAccountID, account.ApprovalApproved)
}

func (s *Service) RejectDoctor(ctx context.Context, reviewer, doctorAccountID uuid.UUID) (*account.Account, error) {
	return s.UpdateDoctorStatus(ctx, reviewer, doctorAccountID, account.ApprovalRejected)
}

// UpdateDoctorStatus moves a doctor to approved or rejected. Repeating the
// current decision succeeds without change; a rejected doctor cannot be
// approved.
func (s *Service) UpdateDoctorStatus(ctx context.Context, reviewer, doctorAccountID uuid.UUID, status account.ApprovalStatus) (*account.Account, error) {
	if status != account.ApprovalApproved && status != account.ApprovalRejected {
		return nil, apperr.Validation("Status must be approved or rejected")
	}

	acct, err := s.accounts.GetByID(ctx, doctorAccountID)
	if errors.Is(err, account.ErrNotFound) || (err == nil && acct.Role != auth.RoleDoctor) {
		return nil, apperr.NotFound("Doctor not found")
	}
	if err != nil {
		return nil, err
	}

	previous := acct.ApprovalStatus
	if err := acct.Transition(status); err != nil {
		if errors.Is(err, account.ErrInvalidTransition) {
			return nil, apperr.Wrap(apperr.KindConflict,
				fmt.Sprintf("Cannot change doctor status from %s to %s", previous, status), err)
		}
		return nil, err
	}
	if previous == status {
		return acct, nil
	}

	if err := s.accounts.UpdateApproval(ctx, acct.ID, acct.ApprovalStatus, acct.IsVerified, reviewer); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, apperr.NotFound("Doctor not found")
		}
		return nil, err
	}

	s.logger.Info().
		Str("doctor_account_id", acct.ID.String()).
		Str("reviewer_id", reviewer.String()).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("doctor approval status changed")

	return s.accounts.GetByID(ctx, acct.ID)
}

// -- Listings --

func (s *Service) ListDoctors(ctx context.Context, status string, limit, offset int) ([]*DoctorListing, int, error) {
	st := account.ApprovalStatus(status)
	if st != "" && !st.Valid() {
		return nil, 0, apperr.Validation("status must be pending, approved or rejected")
	}
	list, total, err := s.directory.ListDoctors(ctx, st, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if list == nil {
		list = []*DoctorListing{}
	}
	return list, total, nil
}

func (s *Service) ListUsers(ctx context.Context, role string, limit, offset int) ([]*account.Account, int, error) {
	var (
		list  []*account.Account
		total int
		err   error
	)
	if role == "" {
		list, total, err = s.accounts.List(ctx, limit, offset)
	} else {
		r := auth.Role(role)
		if !r.Valid() {
			return nil, 0, apperr.Validation("Invalid role %s", role)
		}
		list, total, err = s.accounts.ListByRole(ctx, r, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	if list == nil {
		list = []*account.Account{}
	}
	return list, total, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	byRole, err := s.accounts.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.accounts.CountDoctorsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		TotalPatients:   byRole[auth.RolePatient],
		TotalDoctors:    byRole[auth.RoleDoctor],
		TotalAdmins:     byRole[auth.RoleAdmin],
		ApprovedDoctors: byStatus[account.ApprovalApproved],
		PendingDoctors:  byStatus[account.ApprovalPending],
		RejectedDoctors: byStatus[account.ApprovalRejected],
	}
	st.TotalUsers = st.TotalPatients + st.TotalDoctors + st.TotalAdmins
	return st, nil
}
