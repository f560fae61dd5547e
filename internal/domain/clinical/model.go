package clinical

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sonali2314/MediCardPlus/internal/domain/identity"
	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
)

type RecordStatus string

const (
	StatusActive         RecordStatus = "Active"
	StatusResolved       RecordStatus = "Resolved"
	StatusChronic        RecordStatus = "Chronic"
	StatusUnderTreatment RecordStatus = "Under Treatment"
)

type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

const (
	defaultReportType = "General"
	defaultLabName    = "Not Specified"
)

// MedicalRecord groups a patient's visits for one disease. There is at most
// one record per (patient, disease name).
type MedicalRecord struct {
	ID          uuid.UUID                `db:"id" json:"id"`
	PatientID   uuid.UUID                `db:"patient_id" json:"patientId"`
	DiseaseName string                   `db:"disease_name" json:"diseaseName"`
	Description string                   `db:"description" json:"description"`
	Status      RecordStatus             `db:"status" json:"status"`
	CreatedAt   time.Time                `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time                `db:"updated_at" json:"updatedAt"`
	Patient     *identity.PatientSummary `db:"-" json:"patient,omitempty"`
	Visits      []*Visit                 `db:"-" json:"visits"`
}

type Visit struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	MedicalRecordID uuid.UUID           `db:"medical_record_id" json:"medicalRecordId"`
	DoctorID        uuid.UUID           `db:"doctor_id" json:"doctorId"`
	VisitDate       time.Time           `db:"visit_date" json:"visitDate"`
	Symptoms        string              `db:"symptoms" json:"symptoms"`
	Diagnosis       string              `db:"diagnosis" json:"diagnosis"`
	Notes           string              `db:"notes" json:"notes"`
	FollowUpDate    *time.Time          `db:"follow_up_date" json:"followUpDate,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"createdAt"`
	Doctor          *identity.DoctorRef `db:"-" json:"doctor,omitempty"`
	Prescription    *Prescription       `db:"-" json:"prescription,omitempty"`
	Reports         []*Report           `db:"-" json:"reports"`
}

type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

func (m Medication) complete() bool {
	return strings.TrimSpace(m.Name) != "" && strings.TrimSpace(m.Dosage) != "" &&
		strings.TrimSpace(m.Frequency) != "" && strings.TrimSpace(m.Duration) != ""
}

type Prescription struct {
	ID                     uuid.UUID           `db:"id" json:"id"`
	VisitID                uuid.UUID           `db:"visit_id" json:"visitId"`
	DoctorID               uuid.UUID           `db:"doctor_id" json:"doctorId"`
	PatientID              uuid.UUID           `db:"patient_id" json:"patientId"`
	Medications            []Medication        `db:"medications" json:"medications"`
	AdditionalInstructions string              `db:"additional_instructions" json:"additionalInstructions"`
	CreatedAt              time.Time           `db:"created_at" json:"createdAt"`
	Doctor                 *identity.DoctorRef `db:"-" json:"doctor,omitempty"`
}

type Report struct {
	ID         uuid.UUID `db:"id" json:"id"`
	VisitID    uuid.UUID `db:"visit_id" json:"visitId"`
	PatientID  uuid.UUID `db:"patient_id" json:"patientId"`
	ReportType string    `db:"report_type" json:"reportType"`
	ReportFile string    `db:"report_file" json:"reportFile"`
	ReportDate time.Time `db:"report_date" json:"reportDate"`
	LabName    string    `db:"lab_name" json:"labName"`
	Notes      string    `db:"notes" json:"notes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type Allergy struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	PatientID     uuid.UUID           `db:"patient_id" json:"patientId"`
	Name          string              `db:"name" json:"name"`
	Severity      Severity            `db:"severity" json:"severity"`
	DiagnosedByID *uuid.UUID          `db:"diagnosed_by" json:"diagnosedById,omitempty"`
	DiagnosedDate time.Time           `db:"diagnosed_date" json:"diagnosedDate"`
	Notes         string              `db:"notes" json:"notes"`
	CreatedAt     time.Time           `db:"created_at" json:"createdAt"`
	DiagnosedBy   *identity.DoctorRef `db:"-" json:"diagnosedBy,omitempty"`
}

// PrescriptionInput is the prescription part of a visit. It is ignored when
// it lists no medications.
type PrescriptionInput struct {
	Medications            []Medication `json:"medications"`
	AdditionalInstructions string       `json:"additionalInstructions"`
}

// ReportUpload is a lab report file attached to a visit.
type ReportUpload struct {
	Type string
	File *blobstore.File
}

// VisitInput is a doctor's request to record a visit. PatientCode is the
// patient's public patientId.
type VisitInput struct {
	PatientCode        string
	DiseaseName        string
	DiseaseDescription string
	VisitDate          *time.Time
	Symptoms           string
	Diagnosis          string
	Notes              string
	FollowUpDate       *time.Time
	Prescription       *PrescriptionInput
	Reports            []ReportUpload
	LabName            string
	ReportNotes        string
}

func (in *VisitInput) Validate() error {
	in.PatientCode = strings.TrimSpace(in.PatientCode)
	in.DiseaseName = strings.TrimSpace(in.DiseaseName)
	if in.PatientCode == "" || in.DiseaseName == "" {
		return apperr.Validation("Please provide patient ID and disease name")
	}
	if in.Prescription != nil {
		for _, m := range in.Prescription.Medications {
			if !m.complete() {
				return apperr.Validation("Each medication needs a name, dosage, frequency and duration")
			}
		}
	}
	for _, r := range in.Reports {
		if r.File == nil {
			return apperr.Validation("Please upload report file")
		}
	}
	return nil
}

func (in *VisitInput) hasPrescription() bool {
	return in.Prescription != nil && len(in.Prescription.Medications) > 0
}

type AllergyInput struct {
	PatientCode string   `json:"patientId"`
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Notes       string   `json:"notes"`
}

func (in *AllergyInput) Validate() error {
	in.PatientCode = strings.TrimSpace(in.PatientCode)
	in.Name = strings.TrimSpace(in.Name)
	if in.PatientCode == "" || in.Name == "" || in.Severity == "" {
		return apperr.Validation("Please provide patient ID, allergy name and severity")
	}
	if !in.Severity.Valid() {
		return apperr.Validation("Severity must be one of Mild, Moderate, Severe")
	}
	return nil
}

// VisitResult is returned after recording a visit.
type VisitResult struct {
	Visit         *Visit         `json:"visit"`
	MedicalRecord *MedicalRecord `json:"medicalRecord"`
}

// PatientChart is the doctor's full view of a patient.
type PatientChart struct {
	Patient        *identity.Patient `json:"patient"`
	MedicalRecords []*MedicalRecord  `json:"medicalRecords"`
	Allergies      []*Allergy        `json:"allergies"`
}
