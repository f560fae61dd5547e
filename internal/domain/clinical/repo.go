package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound       = errors.New("medical record not found")
	ErrVisitNotFound        = errors.New("visit not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrReportNotFound       = errors.New("report not found")
	ErrDuplicateAllergy     = errors.New("allergy already recorded")
)

type RecordRepository interface {
	// FindOrCreate loads the record for (PatientID, DiseaseName) into r,
	// creating it when missing. An existing record has its updated time
	// bumped.
	FindOrCreate(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	// ListByPatient returns records most recently updated first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error)
}

type VisitRepository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// ListByRecords returns visits newest first.
	ListByRecords(ctx context.Context, recordIDs []uuid.UUID) ([]*Visit, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// ListByVisits returns prescriptions keyed by visit id.
	ListByVisits(ctx context.Context, visitIDs []uuid.UUID) (map[uuid.UUID]*Prescription, error)
}

type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	// ListByVisits returns reports grouped by visit id.
	ListByVisits(ctx context.Context, visitIDs []uuid.UUID) (map[uuid.UUID][]*Report, error)
}

type AllergyRepository interface {
	// Create fails with ErrDuplicateAllergy when the patient already has an
	// allergy of the same name, ignoring case.
	Create(ctx context.Context, a *Allergy) error
	ExistsByName(ctx context.Context, patientID uuid.UUID, name string) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error)
}
