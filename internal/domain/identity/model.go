package identity

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
)

// Patient genders.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

const BloodGroupUnknown = "Unknown"

var bloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
	BloodGroupUnknown: true,
}

// ValidBloodGroup reports whether g is an accepted blood group.
func ValidBloodGroup(g string) bool {
	return bloodGroups[g]
}

// ValidGender reports whether g is an accepted gender.
func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type EmergencyContact struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Phone    string `json:"phone"`
}

// Patient maps to the patients table. PatientID is the public code printed
// on the health card and used by doctors to look the patient up.
type Patient struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	AccountID        uuid.UUID         `db:"account_id" json:"accountId"`
	PatientID        string            `db:"patient_code" json:"patientId"`
	FullName         string            `db:"full_name" json:"fullName"`
	Age              int               `db:"age" json:"age"`
	Gender           string            `db:"gender" json:"gender"`
	ContactNumber    string            `db:"contact_number" json:"contactNumber"`
	Address          string            `db:"address" json:"address"`
	GovernmentID     string            `db:"government_id" json:"governmentId,omitempty"`
	BloodGroup       string            `db:"blood_group" json:"bloodGroup"`
	EmergencyContact *EmergencyContact `json:"emergencyContact,omitempty"`
	ProfilePicture   string            `db:"profile_picture" json:"profilePicture,omitempty"`
	DigitalCard      string            `db:"digital_card" json:"digitalCard,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updatedAt"`
}

// Validate checks the fields required for a patient profile and fills
// defaults.
func (p *Patient) Validate() error {
	if strings.TrimSpace(p.FullName) == "" || p.Age <= 0 || p.Gender == "" ||
		strings.TrimSpace(p.ContactNumber) == "" || strings.TrimSpace(p.Address) == "" {
		return apperr.Validation("Please provide all required patient information")
	}
	if p.Age > 150 {
		return apperr.Validation("age must be between 1 and 150")
	}
	if !ValidGender(p.Gender) {
		return apperr.Validation("gender must be one of Male, Female, Other")
	}
	if p.BloodGroup == "" {
		p.BloodGroup = BloodGroupUnknown
	}
	if !ValidBloodGroup(p.BloodGroup) {
		return apperr.Validation("invalid blood group %q", p.BloodGroup)
	}
	if p.EmergencyContact != nil && strings.TrimSpace(p.EmergencyContact.Name) == "" {
		p.EmergencyContact = nil
	}
	return nil
}

// PatientSummary is the projection returned by patient search.
type PatientSummary struct {
	ID            uuid.UUID `json:"id"`
	PatientID     string    `json:"patientId"`
	FullName      string    `json:"fullName"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender"`
	BloodGroup    string    `json:"bloodGroup"`
	ContactNumber string    `json:"contactNumber"`
}

func (p *Patient) Summary() *PatientSummary {
	return &PatientSummary{
		ID:            p.ID,
		PatientID:     p.PatientID,
		FullName:      p.FullName,
		Age:           p.Age,
		Gender:        p.Gender,
		BloodGroup:    p.BloodGroup,
		ContactNumber: p.ContactNumber,
	}
}

// PatientUpdate carries the editable profile fields. Nil fields are left
// unchanged.
type PatientUpdate struct {
	FullName         *string           `json:"fullName"`
	Age              *int              `json:"age"`
	Gender           *string           `json:"gender"`
	ContactNumber    *string           `json:"contactNumber"`
	Address          *string           `json:"address"`
	BloodGroup       *string           `json:"bloodGroup"`
	EmergencyContact *EmergencyContact `json:"emergencyContact"`
}

func (u PatientUpdate) apply(p *Patient) {
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.ContactNumber != nil {
		p.ContactNumber = *u.ContactNumber
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.BloodGroup != nil {
		p.BloodGroup = *u.BloodGroup
	}
	if u.EmergencyContact != nil {
		ec := *u.EmergencyContact
		p.EmergencyContact = &ec
	}
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	AccountID          uuid.UUID `db:"account_id" json:"accountId"`
	DoctorID           string    `db:"doctor_code" json:"doctorId"`
	Name               string    `db:"name" json:"name"`
	Specialization     string    `db:"specialization" json:"specialization"`
	HospitalName       string    `db:"hospital_name" json:"hospitalName"`
	RegistrationNumber string    `db:"registration_number" json:"registrationNumber"`
	ContactNumber      string    `db:"contact_number" json:"contactNumber"`
	MedicalLicense     string    `db:"medical_license" json:"medicalLicense"`
	ProfilePicture     string    `db:"profile_picture" json:"profilePicture,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

func (d *Doctor) Validate() error {
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Specialization) == "" ||
		strings.TrimSpace(d.HospitalName) == "" || strings.TrimSpace(d.RegistrationNumber) == "" ||
		strings.TrimSpace(d.ContactNumber) == "" {
		return apperr.Validation("Please provide all required doctor information")
	}
	return nil
}

// DoctorUpdate carries the editable doctor fields. The registration number
// and license are fixed after registration.
type DoctorUpdate struct {
	Name           *string `json:"name"`
	Specialization *string `json:"specialization"`
	HospitalName   *string `json:"hospitalName"`
	ContactNumber  *string `json:"contactNumber"`
}

func (u DoctorUpdate) apply(d *Doctor) {
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Specialization != nil {
		d.Specialization = *u.Specialization
	}
	if u.HospitalName != nil {
		d.HospitalName = *u.HospitalName
	}
	if u.ContactNumber != nil {
		d.ContactNumber = *u.ContactNumber
	}
}

// DoctorRef is the doctor projection embedded in clinical records.
type DoctorRef struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	HospitalName   string    `json:"hospitalName,omitempty"`
}

func (d *Doctor) Ref() *DoctorRef {
	return &DoctorRef{ID: d.ID, Name: d.Name, Specialization: d.Specialization, HospitalName: d.HospitalName}
}

// NewPatientCode returns a code of the form P-1A2B3C4D.
func NewPatientCode() string {
	return "P-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewDoctorCode returns a code of the form D-123456.
func NewDoctorCode() string {
	return fmt.Sprintf("D-%d", 100000+rand.IntN(900000))
}
