package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
	"github.com/Sonali2314/MediCardPlus/internal/platform/healthcard"
)

const (
	maxCodeAttempts = 3
	searchLimit     = 50
)

// CardRenderer renders a patient's health card PDF.
type CardRenderer interface {
	Render(card healthcard.Card) ([]byte, error)
}

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
	blobs    blobstore.BlobStore
	cards    CardRenderer
	logger   zerolog.Logger
}

func NewService(patients PatientRepository, doctors DoctorRepository, blobs blobstore.BlobStore, cards CardRenderer, logger zerolog.Logger) *Service {
	return &Service{
		patients: patients,
		doctors:  doctors,
		blobs:    blobs,
		cards:    cards,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

// -- Patients --

// CreatePatient validates and stores a new patient profile with a freshly
// generated patient code.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.AccountID == uuid.Nil {
		return fmt.Errorf("patient account id is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		p.PatientID = NewPatientCode()
		err := s.patients.Create(ctx, p)
		if errors.Is(err, ErrDuplicateCode) && attempt < maxCodeAttempts-1 {
			continue
		}
		return err
	}
}

func (s *Service) GetPatientByAccount(ctx context.Context, accountID uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByAccountID(ctx, accountID)
	if errors.Is(err, ErrPatientNotFound) {
		return nil, apperr.NotFound("Patient profile not found")
	}
	return p, err
}

func (s *Service) GetPatientByCode(ctx context.Context, code string) (*Patient, error) {
	p, err := s.patients.GetByPatientCode(ctx, code)
	if errors.Is(err, ErrPatientNotFound) {
		return nil, apperr.NotFound("Patient not found")
	}
	return p, err
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, ErrPatientNotFound) {
		return nil, apperr.NotFound("Patient not found")
	}
	return p, err
}

// UpdatePatientProfile applies the update and regenerates the health card so
// the printed details stay current.
func (s *Service) UpdatePatientProfile(ctx context.Context, accountID uuid.UUID, u PatientUpdate) (*Patient, error) {
	p, err := s.GetPatientByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	u.apply(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.IssueCard(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SearchPatients matches the query case-insensitively against name, patient
// code and contact number.
func (s *Service) SearchPatients(ctx context.Context, query string) ([]*PatientSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("Please provide a search query")
	}
	found, err := s.patients.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]*PatientSummary, 0, len(found))
	for _, p := range found {
		out = append(out, p.Summary())
	}
	return out, nil
}

// -- Health card --

func cardFor(p *Patient) healthcard.Card {
	card := healthcard.Card{
		PatientID:  p.PatientID,
		FullName:   p.FullName,
		Age:        p.Age,
		Gender:     p.Gender,
		BloodGroup: p.BloodGroup,
	}
	if ec := p.EmergencyContact; ec != nil {
		card.EmergencyName = ec.Name
		card.EmergencyRelation = ec.Relation
		card.EmergencyPhone = ec.Phone
	}
	return card
}

// IssueCard renders the patient's health card, stores it and points the
// profile at it. A previously issued card is removed.
func (s *Service) IssueCard(ctx context.Context, p *Patient) error {
	_, err := s.issueCard(ctx, p)
	return err
}

func (s *Service) issueCard(ctx context.Context, p *Patient) ([]byte, error) {
	pdf, err := s.cards.Render(cardFor(p))
	if err != nil {
		return nil, fmt.Errorf("render health card: %w", err)
	}
	meta, err := blobstore.SaveBytes(ctx, s.blobs, pdf, blobstore.BlobMetadata{
		FileName:    healthcard.FileName(p.PatientID),
		ContentType: "application/pdf",
		OwnerID:     p.AccountID.String(),
		Category:    blobstore.CategoryHealthCard,
		CreatedBy:   p.AccountID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("store health card: %w", err)
	}

	previous := p.DigitalCard
	url := blobstore.URL(meta.ID)
	if err := s.patients.SetDigitalCard(ctx, p.ID, url); err != nil {
		blobstore.DeleteQuietly(ctx, s.blobs, meta.ID)
		return nil, err
	}
	p.DigitalCard = url
	blobstore.DeleteQuietly(ctx, s.blobs, blobstore.IDFromURL(previous))

	s.logger.Info().Str("patient_id", p.PatientID).Str("blob_id", meta.ID).Msg("health card issued")
	return pdf, nil
}

// DigitalCard returns the URL of the patient's health card, issuing one if
// the patient has none yet.
func (s *Service) DigitalCard(ctx context.Context, accountID uuid.UUID) (string, error) {
	p, err := s.GetPatientByAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if p.DigitalCard == "" {
		if err := s.IssueCard(ctx, p); err != nil {
			return "", err
		}
	}
	return p.DigitalCard, nil
}

// HealthCardPDF returns the card PDF for the given patient code. Patients
// may only download their own card.
func (s *Service) HealthCardPDF(ctx context.Context, accountID uuid.UUID, patientCode string) ([]byte, string, error) {
	p, err := s.GetPatientByCode(ctx, patientCode)
	if err != nil {
		return nil, "", err
	}
	if p.AccountID != accountID {
		return nil, "", apperr.Forbidden("Not authorized to access this health card")
	}
	name := healthcard.FileName(p.PatientID)

	if id := blobstore.IDFromURL(p.DigitalCard); id != "" {
		rc, _, err := s.blobs.Download(ctx, id)
		if err == nil {
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, "", fmt.Errorf("read health card: %w", err)
			}
			return data, name, nil
		}
		if !errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, "", err
		}
		s.logger.Warn().Str("patient_id", p.PatientID).Msg("health card blob missing, reissuing")
	}

	data, err := s.issueCard(ctx, p)
	if err != nil {
		return nil, "", err
	}
	return data, name, nil
}

// -- Doctors --

// CreateDoctor validates and stores a new doctor profile. The registration
// number must be unique across doctors.
func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.AccountID == uuid.Nil {
		return fmt.Errorf("doctor account id is required")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if d.MedicalLicense == "" {
		return apperr.Validation("Please upload your medical license")
	}
	for attempt := 0; ; attempt++ {
		d.DoctorID = NewDoctorCode()
		err := s.doctors.Create(ctx, d)
		switch {
		case errors.Is(err, ErrDuplicateCode) && attempt < maxCodeAttempts-1:
			continue
		case errors.Is(err, ErrDuplicateRegistration):
			return apperr.Validation("Registration number already registered")
		}
		return err
	}
}

func (s *Service) GetDoctorByAccount(ctx context.Context, accountID uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByAccountID(ctx, accountID)
	if errors.Is(err, ErrDoctorNotFound) {
		return nil, apperr.NotFound("Doctor profile not found")
	}
	return d, err
}

// DoctorRefs resolves doctor ids to their public projection. Unknown ids are
// omitted.
func (s *Service) DoctorRefs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*DoctorRef, error) {
	docs, err := s.doctors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*DoctorRef, len(docs))
	for id, d := range docs {
		out[id] = d.Ref()
	}
	return out, nil
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, accountID uuid.UUID, u DoctorUpdate) (*Doctor, error) {
	d, err := s.GetDoctorByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	u.apply(d)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Profile returns the role-specific profile for an account: a *Patient, a
// *Doctor, or nil for admins and accounts without a profile.
func (s *Service) Profile(ctx context.Context, accountID uuid.UUID, role auth.Role) (interface{}, error) {
	switch role {
	case auth.RolePatient:
		p, err := s.patients.GetByAccountID(ctx, accountID)
		if errors.Is(err, ErrPatientNotFound) {
			return nil, nil
		}
		return p, err
	case auth.RoleDoctor:
		d, err := s.doctors.GetByAccountID(ctx, accountID)
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil
		}
		return d, err
	}
	return nil, nil
}
