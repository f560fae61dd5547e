// Package seed loads demo accounts from a YAML fixture file through the
// regular registration path, so seeded users get the same profiles, codes and
// health cards as users who sign up through the API.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
	"github.com/Sonali2314/MediCardPlus/internal/domain/identity"
	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
)

// Fixtures is the top-level shape of a seed file.
type Fixtures struct {
	Accounts []Fixture `yaml:"accounts"`
}

type Fixture struct {
	Email    string    `yaml:"email"`
	Password string    `yaml:"password"`
	Role     auth.Role `yaml:"role"`

	Patient *PatientFixture `yaml:"patient"`
	Doctor  *DoctorFixture  `yaml:"doctor"`
	Admin   *AdminFixture   `yaml:"admin"`
}

type PatientFixture struct {
	FullName         string `yaml:"fullName"`
	Age              int    `yaml:"age"`
	Gender           string `yaml:"gender"`
	ContactNumber    string `yaml:"contactNumber"`
	Address          string `yaml:"address"`
	BloodGroup       string `yaml:"bloodGroup"`
	EmergencyContact *struct {
		Name     string `yaml:"name"`
		Relation string `yaml:"relation"`
		Phone    string `yaml:"phone"`
	} `yaml:"emergencyContact"`
}

type DoctorFixture struct {
	Name               string `yaml:"name"`
	Specialization     string `yaml:"specialization"`
	HospitalName       string `yaml:"hospitalName"`
	RegistrationNumber string `yaml:"registrationNumber"`
	ContactNumber      string `yaml:"contactNumber"`
	// LicenseFile is read relative to the fixture file. When empty a
	// placeholder PDF is generated.
	LicenseFile string `yaml:"licenseFile"`
	Approved    bool   `yaml:"approved"`
}

type AdminFixture struct {
	Name          string `yaml:"name"`
	AdminID       string `yaml:"adminId"`
	ContactNumber string `yaml:"contactNumber"`
}

// Registrar creates accounts. *account.Service satisfies it.
type Registrar interface {
	Register(ctx context.Context, in account.RegisterInput) (*account.Account, error)
}

// Approver reviews doctors. *admin.Service satisfies it.
type Approver interface {
	ApproveDoctor(ctx context.Context, reviewer, doctorAccountID uuid.UUID) (*account.Account, error)
}

// Result summarises a seed run.
type Result struct {
	Created  int
	Skipped  int
	Approved int
}

type Seeder struct {
	registrar Registrar
	approver  Approver
	adminKey  string
	logger    zerolog.Logger
}

func NewSeeder(registrar Registrar, approver Approver, adminKey string, logger zerolog.Logger) *Seeder {
	return &Seeder{
		registrar: registrar,
		approver:  approver,
		adminKey:  adminKey,
		logger:    logger.With().Str("component", "seed").Logger(),
	}
}

// Parse decodes a fixture document. Unknown keys are rejected.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, fx := range f.Accounts {
		if !fx.Role.Valid() {
			return nil, fmt.Errorf("accounts[%d] (%s): invalid role %q", i, fx.Email, fx.Role)
		}
	}
	return &f, nil
}

// LoadFile reads and seeds the fixture file at path.
func (s *Seeder) LoadFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, f, filepath.Dir(path))
}

// Load registers every fixture in order. Accounts whose email is already
// registered are skipped, so a seed file can be applied repeatedly. Doctors
// marked approved are approved by the first admin in the file.
func (s *Seeder) Load(ctx context.Context, f *Fixtures, baseDir string) (*Result, error) {
	res := &Result{}
	var (
		reviewer uuid.UUID
		approve  []uuid.UUID
	)

	for i, fx := range f.Accounts {
		in, err := s.input(fx, baseDir)
		if err != nil {
			return res, fmt.Errorf("accounts[%d] (%s): %w", i, fx.Email, err)
		}
		acct, err := s.registrar.Register(ctx, in)
		if err != nil {
			if emailTaken(err) {
				s.logger.Info().Str("email", fx.Email).Msg("account exists, skipping")
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("accounts[%d] (%s): %w", i, fx.Email, err)
		}
		res.Created++

		switch {
		case acct.Role == auth.RoleAdmin && reviewer == uuid.Nil:
			reviewer = acct.ID
		case acct.Role == auth.RoleDoctor && fx.Doctor != nil && fx.Doctor.Approved:
			approve = append(approve, acct.ID)
		}
	}

	if len(approve) > 0 && reviewer == uuid.Nil {
		s.logger.Warn().Int("doctors", len(approve)).Msg("no admin created by this file, leaving doctors pending")
		return res, nil
	}
	for _, id := range approve {
		if _, err := s.approver.ApproveDoctor(ctx, reviewer, id); err != nil {
			return res, fmt.Errorf("approve doctor %s: %w", id, err)
		}
		res.Approved++
	}

	s.logger.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("approved", res.Approved).
		Msg("seed complete")
	return res, nil
}

func emailTaken(err error) bool {
	var appErr *apperr.Error
	return errors.As(err, &appErr) && appErr.Kind == apperr.KindValidation && appErr.Message == account.MsgEmailRegistered
}

func (s *Seeder) input(fx Fixture, baseDir string) (account.RegisterInput, error) {
	in := account.RegisterInput{Email: fx.Email, Password: fx.Password, Role: fx.Role}

	switch fx.Role {
	case auth.RolePatient:
		if fx.Patient == nil {
			return in, fmt.Errorf("patient section is required")
		}
		p := fx.Patient
		in.Patient = identity.Patient{
			FullName:      p.FullName,
			Age:           p.Age,
			Gender:        p.Gender,
			ContactNumber: p.ContactNumber,
			Address:       p.Address,
			BloodGroup:    p.BloodGroup,
		}
		if ec := p.EmergencyContact; ec != nil {
			in.Patient.EmergencyContact = &identity.EmergencyContact{Name: ec.Name, Relation: ec.Relation, Phone: ec.Phone}
		}

	case auth.RoleDoctor:
		if fx.Doctor == nil {
			return in, fmt.Errorf("doctor section is required")
		}
		d := fx.Doctor
		in.Doctor = identity.Doctor{
			Name:               d.Name,
			Specialization:     d.Specialization,
			HospitalName:       d.HospitalName,
			RegistrationNumber: d.RegistrationNumber,
			ContactNumber:      d.ContactNumber,
		}
		license, err := licenseFile(d, baseDir)
		if err != nil {
			return in, err
		}
		in.MedicalLicense = license

	case auth.RoleAdmin:
		if fx.Admin == nil {
			return in, fmt.Errorf("admin section is required")
		}
		in.Admin = account.AdminDetails{
			Name:          fx.Admin.Name,
			AdminID:       fx.Admin.AdminID,
			ContactNumber: fx.Admin.ContactNumber,
			SecretKey:     s.adminKey,
		}
	}
	return in, nil
}

func licenseFile(d *DoctorFixture, baseDir string) (*blobstore.File, error) {
	if d.LicenseFile != "" {
		path := d.LicenseFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read license: %w", err)
		}
		return &blobstore.File{Name: filepath.Base(path), Data: data}, nil
	}

	data, err := placeholderLicense(d.Name, d.RegistrationNumber)
	if err != nil {
		return nil, err
	}
	return &blobstore.File{Name: "license.pdf", Data: data}, nil
}

// placeholderLicense renders a one-page PDF standing in for a scanned
// medical license.
func placeholderLicense(name, registration string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Medical License (seed data)")
	pdf.Ln(16)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, "Name: "+name)
	pdf.Ln(8)
	pdf.Cell(0, 8, "Registration: "+registration)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render placeholder license: %w", err)
	}
	return buf.Bytes(), nil
}
