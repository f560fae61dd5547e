package seed

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
)

type fakeRegistrar struct {
	byEmail map[string]*account.Account
	inputs  []account.RegisterInput
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{byEmail: make(map[string]*account.Account)}
}

func (f *fakeRegistrar) Register(_ context.Context, in account.RegisterInput) (*account.Account, error) {
	if _, ok := f.byEmail[in.Email]; ok {
		return nil, apperr.Validation(account.MsgEmailRegistered)
	}
	f.inputs = append(f.inputs, in)
	a := &account.Account{ID: uuid.New(), Email: in.Email, Role: in.Role}
	if in.Role == auth.RoleDoctor {
		a.ApprovalStatus = account.ApprovalPending
	}
	f.byEmail[in.Email] = a
	return a, nil
}

type approval struct {
	reviewer, doctor uuid.UUID
}

type fakeApprover struct {
	calls []approval
}

func (f *fakeApprover) ApproveDoctor(_ context.Context, reviewer, id uuid.UUID) (*account.Account, error) {
	f.calls = append(f.calls, approval{reviewer, id})
	return &account.Account{ID: id, Role: auth.RoleDoctor, ApprovalStatus: account.ApprovalApproved, IsVerified: true}, nil
}

func TestLoadFile(t *testing.T) {
	reg := newFakeRegistrar()
	appr := &fakeApprover{}
	s := NewSeeder(reg, appr, "server-key", zerolog.Nop())

	res, err := s.LoadFile(context.Background(), filepath.Join("testdata", "fixtures.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if res.Created != 4 || res.Skipped != 0 || res.Approved != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	admin := reg.byEmail["admin@medicard.test"]
	rao := reg.byEmail["rao@medicard.test"]
	if len(appr.calls) != 1 || appr.calls[0].reviewer != admin.ID || appr.calls[0].doctor != rao.ID {
		t.Errorf("expected rao approved by the seeded admin, got %+v", appr.calls)
	}

	for _, in := range reg.inputs {
		switch in.Email {
		case "admin@medicard.test":
			if in.Admin.SecretKey != "server-key" || in.Admin.AdminID != "ADM-001" {
				t.Errorf("admin input not populated: %+v", in.Admin)
			}
		case "asha@medicard.test":
			if in.Patient.FullName != "Asha Verma" || in.Patient.EmergencyContact == nil || in.Patient.EmergencyContact.Relation != "spouse" {
				t.Errorf("patient input not populated: %+v", in.Patient)
			}
		case "rao@medicard.test":
			if in.MedicalLicense == nil || in.MedicalLicense.Name != "license.pdf" || !bytes.HasPrefix(in.MedicalLicense.Data, []byte("%PDF")) {
				t.Errorf("expected license read from testdata, got %+v", in.MedicalLicense)
			}
		case "iyer@medicard.test":
			if in.MedicalLicense == nil || !bytes.HasPrefix(in.MedicalLicense.Data, []byte("%PDF")) {
				t.Error("expected a generated placeholder license")
			}
		}
	}
}

func TestLoadFile_Rerun(t *testing.T) {
	reg := newFakeRegistrar()
	s := NewSeeder(reg, &fakeApprover{}, "server-key", zerolog.Nop())
	path := filepath.Join("testdata", "fixtures.yaml")
	if _, err := s.LoadFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	appr := &fakeApprover{}
	s = NewSeeder(reg, appr, "server-key", zerolog.Nop())
	res, err := s.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Created != 0 || res.Skipped != 4 || len(appr.calls) != 0 {
		t.Errorf("expected every account skipped, got %+v", res)
	}
}

func TestLoad_DoctorsStayPendingWithoutAdmin(t *testing.T) {
	f, err := Parse([]byte(`
accounts:
  - email: rao@medicard.test
    password: doctor123
    role: doctor
    doctor:
      name: Dr. Meera Rao
      specialization: Cardiology
      hospitalName: City Hospital
      registrationNumber: MCI-20431
      contactNumber: "123"
      approved: true
`))
	if err != nil {
		t.Fatal(err)
	}
	appr := &fakeApprover{}
	res, err := NewSeeder(newFakeRegistrar(), appr, "", zerolog.Nop()).Load(context.Background(), f, ".")
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 || res.Approved != 0 || len(appr.calls) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestLoad_RegistrationErrorStops(t *testing.T) {
	f := &Fixtures{Accounts: []Fixture{
		{Email: "x@medicard.test", Password: "secret1", Role: auth.RolePatient},
	}}
	_, err := NewSeeder(newFakeRegistrar(), &fakeApprover{}, "", zerolog.Nop()).Load(context.Background(), f, ".")
	if err == nil || !strings.Contains(err.Error(), "patient section is required") {
		t.Errorf("expected missing section error, got %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "accounts:\n  - email: a@b.c\n    role: patient\n    nickname: x\n", "parse fixtures"},
		{"bad role", "accounts:\n  - email: a@b.c\n    role: nurse\n", `invalid role "nurse"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
