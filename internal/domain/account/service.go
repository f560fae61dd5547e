package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/domain/identity"
	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
)

// User-facing messages. Unknown email and wrong password share one login
// failure message.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgPendingApproval    = "Your account is pending approval from admin"
	MsgRejected           = "Your account application has been rejected"
	MsgAdminNotActivated  = "Your admin account is not activated"

	MsgEmailRegistered = "Email already registered"
)

const minPasswordLen = 6

// AdminDetails are the fields an admin supplies at registration.
type AdminDetails struct {
	Name          string
	AdminID       string
	SecretKey     string
	ContactNumber string
}

// RegisterInput is a registration request. Only the profile matching Role is
// read.
type RegisterInput struct {
	Email    string
	Password string
	Role     auth.Role

	Patient        identity.Patient
	GovernmentID   *blobstore.File
	Doctor         identity.Doctor
	MedicalLicense *blobstore.File
	Admin          AdminDetails
}

type Service struct {
	accounts Repository
	profiles *identity.Service
	blobs    blobstore.BlobStore
	adminKey string
	logger   zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewService(accounts Repository, profiles *identity.Service, blobs blobstore.BlobStore, adminKey string, logger zerolog.Logger) *Service {
	return &Service{
		accounts: accounts,
		profiles: profiles,
		blobs:    blobs,
		adminKey: adminKey,
		logger:   logger.With().Str("component", "account").Logger(),
	}
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, " <>") {
		return apperr.Validation("Please provide a valid email")
	}
	if len(password) < minPasswordLen {
		return apperr.Validation("Password must be at least %d characters long", minPasswordLen)
	}
	return nil
}

// Register creates an account and its role profile. The account row is
// written first; if any later step fails it is deleted again together with
// any files uploaded for it, so a retry with the same email can succeed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" || in.Role == "" {
		return nil, apperr.Validation("Please provide email, password and role")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("Invalid role %s", in.Role)
	}
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Validation(MsgEmailRegistered)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	acct := &Account{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsVerified:   in.Role == auth.RolePatient,
	}
	if in.Role == auth.RoleDoctor {
		acct.ApprovalStatus = ApprovalPending
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperr.Validation(MsgEmailRegistered)
		}
		return nil, err
	}

	var uploaded []string
	switch in.Role {
	case auth.RolePatient:
		err = s.registerPatient(ctx, acct, in, &uploaded)
	case auth.RoleDoctor:
		err = s.registerDoctor(ctx, acct, in, &uploaded)
	case auth.RoleAdmin:
		err = s.registerAdmin(ctx, acct, in.Admin)
	}
	if err != nil {
		s.rollback(acct, uploaded, err)
		return nil, err
	}

	s.logger.Info().Str("account_id", acct.ID.String()).Str("role", string(acct.Role)).Msg("account registered")
	return acct, nil
}

// rollback undoes a partially completed registration. It runs on a fresh
// context so a cancelled request still cleans up.
func (s *Service) rollback(acct *Account, blobIDs []string, cause error) {
	ctx := context.Background()
	blobstore.DeleteQuietly(ctx, s.blobs, blobIDs...)
	if err := s.accounts.Delete(ctx, acct.ID); err != nil {
		s.logger.Error().Err(err).Str("account_id", acct.ID.String()).Msg("registration rollback failed")
		return
	}
	s.logger.Warn().Err(cause).Str("account_id", acct.ID.String()).Str("role", string(acct.Role)).Msg("registration rolled back")
}

func (s *Service) saveUpload(ctx context.Context, f *blobstore.File, acct *Account, category string, uploaded *[]string) (string, error) {
	meta, err := blobstore.SaveFile(ctx, s.blobs, f, blobstore.BlobMetadata{
		OwnerID:   acct.ID.String(),
		Category:  category,
		CreatedBy: acct.ID.String(),
	})
	if err != nil {
		return "", blobstore.ClassifyError(err)
	}
	*uploaded = append(*uploaded, meta.ID)
	return blobstore.URL(meta.ID), nil
}

func (s *Service) registerPatient(ctx context.Context, acct *Account, in RegisterInput, uploaded *[]string) error {
	p := in.Patient
	p.AccountID = acct.ID
	if err := p.Validate(); err != nil {
		return err
	}
	if in.GovernmentID != nil {
		url, err := s.saveUpload(ctx, in.GovernmentID, acct, blobstore.CategoryGovernmentID, uploaded)
		if err != nil {
			return err
		}
		p.GovernmentID = url
	}
	if err := s.profiles.CreatePatient(ctx, &p); err != nil {
		return err
	}

	if err := s.profiles.IssueCard(ctx, &p); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", p.PatientID).Msg("health card generation failed")
	}
	return nil
}

func (s *Service) registerDoctor(ctx context.Context, acct *Account, in RegisterInput, uploaded *[]string) error {
	d := in.Doctor
	d.AccountID = acct.ID
	if err := d.Validate(); err != nil {
		return err
	}
	if in.MedicalLicense == nil {
		return apperr.Validation("Please upload your medical license")
	}
	url, err := s.saveUpload(ctx, in.MedicalLicense, acct, blobstore.CategoryMedicalLicense, uploaded)
	if err != nil {
		return err
	}
	d.MedicalLicense = url
	return s.profiles.CreateDoctor(ctx, &d)
}

func (s *Service) registerAdmin(ctx context.Context, acct *Account, a AdminDetails) error {
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.AdminID) == "" ||
		a.SecretKey == "" || strings.TrimSpace(a.ContactNumber) == "" {
		return apperr.Validation("Please provide all required admin information")
	}
	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(a.SecretKey), []byte(s.adminKey)) != 1 {
		return apperr.Validation("Invalid admin secret key")
	}
	if err := s.accounts.SetVerified(ctx, acct.ID, true); err != nil {
		return err
	}
	acct.IsVerified = true
	return nil
}

// Login checks credentials for the given role and the account's activation
// state.
func (s *Service) Login(ctx context.Context, email, password string, role auth.Role) (*Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" || role == "" {
		return nil, apperr.Validation("Please provide an email, password, and role")
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if acct == nil || acct.Role != role {
		// Spend the same bcrypt work as a real check.
		auth.CheckPassword(s.fakeHash(), password)
		return nil, apperr.Unauthenticated(MsgInvalidCredentials)
	}
	if !auth.CheckPassword(acct.PasswordHash, password) {
		return nil, apperr.Unauthenticated(MsgInvalidCredentials)
	}

	switch acct.Role {
	case auth.RoleDoctor:
		if acct.ApprovalStatus == ApprovalRejected {
			return nil, apperr.Unauthenticated(MsgRejected)
		}
		if !acct.IsVerified {
			return nil, apperr.Unauthenticated(MsgPendingApproval)
		}
	case auth.RoleAdmin:
		if !acct.IsVerified {
			return nil, apperr.Unauthenticated(MsgAdminNotActivated)
		}
	}
	return acct, nil
}

func (s *Service) fakeHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword(uuid.NewString())
	})
	return s.dummyHash
}

// Me returns the account and its role profile (nil for admins).
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*Account, interface{}, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profiles.Profile(ctx, acct.ID, acct.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile: %w", err)
	}
	return acct, profile, nil
}
