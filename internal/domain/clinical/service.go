package clinical

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sonali2314/MediCardPlus/internal/domain/identity"
	"github.com/Sonali2314/MediCardPlus/internal/platform/apperr"
	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/blobstore"
	"github.com/Sonali2314/MediCardPlus/internal/platform/db"
)

type Service struct {
	records       RecordRepository
	visits        VisitRepository
	prescriptions PrescriptionRepository
	reports       ReportRepository
	allergies     AllergyRepository
	profiles      *identity.Service
	blobs         blobstore.BlobStore
	tx            db.TxRunner
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(
	records RecordRepository,
	visits VisitRepository,
	prescriptions PrescriptionRepository,
	reports ReportRepository,
	allergies AllergyRepository,
	profiles *identity.Service,
	blobs blobstore.BlobStore,
	tx db.TxRunner,
	logger zerolog.Logger,
) *Service {
	return &Service{
		records:       records,
		visits:        visits,
		prescriptions: prescriptions,
		reports:       reports,
		allergies:     allergies,
		profiles:      profiles,
		blobs:         blobs,
		tx:            tx,
		logger:        logger.With().Str("component", "clinical").Logger(),
		now:           time.Now,
	}
}

// -- Visits --

// AddVisit records a visit by the calling doctor. The medical record for the
// disease is created on first use. Report files are stored before the
// database transaction and removed again if it fails.
func (s *Service) AddVisit(ctx context.Context, doctorAccountID uuid.UUID, in VisitInput) (*VisitResult, error) {
	doctor, err := s.profiles.GetDoctorByAccount(ctx, doctorAccountID)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	patient, err := s.profiles.GetPatientByCode(ctx, in.PatientCode)
	if err != nil {
		return nil, err
	}

	var blobIDs []string
	reportURLs := make([]string, 0, len(in.Reports))
	for _, r := range in.Reports {
		meta, err := blobstore.SaveFile(ctx, s.blobs, r.File, blobstore.BlobMetadata{
			OwnerID:   patient.AccountID.String(),
			Category:  blobstore.CategoryReport,
			CreatedBy: doctorAccountID.String(),
		})
		if err != nil {
			blobstore.DeleteQuietly(context.Background(), s.blobs, blobIDs...)
			return nil, blobstore.ClassifyError(err)
		}
		blobIDs = append(blobIDs, meta.ID)
		reportURLs = append(reportURLs, blobstore.URL(meta.ID))
	}

	visitDate := s.now()
	if in.VisitDate != nil {
		visitDate = *in.VisitDate
	}
	rec := &MedicalRecord{
		PatientID:   patient.ID,
		DiseaseName: in.DiseaseName,
		Description: in.DiseaseDescription,
		Status:      StatusActive,
	}
	visit := &Visit{
		DoctorID:     doctor.ID,
		VisitDate:    visitDate,
		Symptoms:     in.Symptoms,
		Diagnosis:    in.Diagnosis,
		Notes:        in.Notes,
		FollowUpDate: in.FollowUpDate,
		Doctor:       doctor.Ref(),
		Reports:      []*Report{},
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.records.FindOrCreate(ctx, rec); err != nil {
			return err
		}
		visit.MedicalRecordID = rec.ID
		if err := s.visits.Create(ctx, visit); err != nil {
			return err
		}

		if in.hasPrescription() {
			p := &Prescription{
				VisitID:                visit.ID,
				DoctorID:               doctor.ID,
				PatientID:              patient.ID,
				Medications:            in.Prescription.Medications,
				AdditionalInstructions: in.Prescription.AdditionalInstructions,
			}
			if err := s.prescriptions.Create(ctx, p); err != nil {
				return err
			}
			visit.Prescription = p
		}

		labName := in.LabName
		if labName == "" {
			labName = defaultLabName
		}
		for i, r := range in.Reports {
			reportType := r.Type
			if reportType == "" {
				reportType = defaultReportType
			}
			rep := &Report{
				VisitID:    visit.ID,
				PatientID:  patient.ID,
				ReportType: reportType,
				ReportFile: reportURLs[i],
				LabName:    labName,
				Notes:      in.ReportNotes,
			}
			if err := s.reports.Create(ctx, rep); err != nil {
				return err
			}
			visit.Reports = append(visit.Reports, rep)
		}
		return nil
	})
	if err != nil {
		blobstore.DeleteQuietly(context.Background(), s.blobs, blobIDs...)
		return nil, err
	}

	s.logger.Info().
		Str("visit_id", visit.ID.String()).
		Str("record_id", rec.ID.String()).
		Str("patient_id", patient.PatientID).
		Int("reports", len(visit.Reports)).
		Msg("visit recorded")

	rec.Visits = []*Visit{visit}
	return &VisitResult{Visit: visit, MedicalRecord: rec}, nil
}

// -- Allergies --

// AddAllergy records an allergy diagnosed by the calling doctor. Names are
// unique per patient, ignoring case.
func (s *Service) AddAllergy(ctx context.Context, doctorAccountID uuid.UUID, in AllergyInput) (*Allergy, error) {
	doctor, err := s.profiles.GetDoctorByAccount(ctx, doctorAccountID)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	patient, err := s.profiles.GetPatientByCode(ctx, in.PatientCode)
	if err != nil {
		return nil, err
	}

	exists, err := s.allergies.ExistsByName(ctx, patient.ID, in.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errDuplicateAllergy()
	}

	a := &Allergy{
		PatientID:     patient.ID,
		Name:          in.Name,
		Severity:      in.Severity,
		DiagnosedByID: &doctor.ID,
		Notes:         in.Notes,
		DiagnosedBy:   doctor.Ref(),
	}
	if err := s.allergies.Create(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateAllergy) {
			return nil, errDuplicateAllergy()
		}
		return nil, err
	}
	return a, nil
}

func errDuplicateAllergy() error {
	return apperr.Validation("This allergy is already recorded for this patient")
}

func (s *Service) listAllergies(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	list, err := s.allergies.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, a := range list {
		if a.DiagnosedByID != nil {
			ids = append(ids, *a.DiagnosedByID)
		}
	}
	refs, err := s.profiles.DoctorRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		if a.DiagnosedByID != nil {
			a.DiagnosedBy = refs[*a.DiagnosedByID]
		}
	}
	if list == nil {
		list = []*Allergy{}
	}
	return list, nil
}

// PatientAllergies returns the calling patient's allergies.
func (s *Service) PatientAllergies(ctx context.Context, patientAccountID uuid.UUID) ([]*Allergy, error) {
	p, err := s.profiles.GetPatientByAccount(ctx, patientAccountID)
	if err != nil {
		return nil, err
	}
	return s.listAllergies(ctx, p.ID)
}

// -- History --

// history loads the patient's records with their visits, prescriptions,
// reports and treating doctors.
func (s *Service) history(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	records, err := s.records.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if err := s.attachVisits(ctx, records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []*MedicalRecord{}
	}
	return records, nil
}

func (s *Service) attachVisits(ctx context.Context, records []*MedicalRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(records))
	byID := make(map[uuid.UUID]*MedicalRecord, len(records))
	for i, r := range records {
		ids[i] = r.ID
		byID[r.ID] = r
		r.Visits = []*Visit{}
	}

	visits, err := s.visits.ListByRecords(ctx, ids)
	if err != nil {
		return err
	}
	if err := s.populateVisits(ctx, visits); err != nil {
		return err
	}
	for _, v := range visits {
		if r, ok := byID[v.MedicalRecordID]; ok {
			r.Visits = append(r.Visits, v)
		}
	}
	return nil
}

func (s *Service) populateVisits(ctx context.Context, visits []*Visit) error {
	if len(visits) == 0 {
		return nil
	}
	visitIDs := make([]uuid.UUID, len(visits))
	doctorIDs := make([]uuid.UUID, 0, len(visits))
	for i, v := range visits {
		visitIDs[i] = v.ID
		doctorIDs = append(doctorIDs, v.DoctorID)
	}

	prescriptions, err := s.prescriptions.ListByVisits(ctx, visitIDs)
	if err != nil {
		return err
	}
	reports, err := s.reports.ListByVisits(ctx, visitIDs)
	if err != nil {
		return err
	}
	refs, err := s.profiles.DoctorRefs(ctx, doctorIDs)
	if err != nil {
		return err
	}

	for _, v := range visits {
		v.Doctor = refs[v.DoctorID]
		v.Prescription = prescriptions[v.ID]
		v.Reports = reports[v.ID]
		if v.Reports == nil {
			v.Reports = []*Report{}
		}
	}
	return nil
}

// MedicalHistory returns the calling patient's records, most recently
// updated first.
func (s *Service) MedicalHistory(ctx context.Context, patientAccountID uuid.UUID) ([]*MedicalRecord, error) {
	p, err := s.profiles.GetPatientByAccount(ctx, patientAccountID)
	if err != nil {
		return nil, err
	}
	return s.history(ctx, p.ID)
}

// PatientChart returns a patient's profile, records and allergies for a
// doctor, looked up by patient code.
func (s *Service) PatientChart(ctx context.Context, patientCode string) (*PatientChart, error) {
	p, err := s.profiles.GetPatientByCode(ctx, patientCode)
	if err != nil {
		return nil, err
	}
	records, err := s.history(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	allergies, err := s.listAllergies(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &PatientChart{Patient: p, MedicalRecords: records, Allergies: allergies}, nil
}

// -- Record access --

// authorize lets doctors read any patient's data and patients only their
// own.
func (s *Service) authorize(ctx context.Context, accountID uuid.UUID, role auth.Role, patientID uuid.UUID, what string) error {
	switch role {
	case auth.RoleDoctor:
		return nil
	case auth.RolePatient:
		p, err := s.profiles.GetPatientByAccount(ctx, accountID)
		if apperr.Is(err, apperr.KindNotFound) || (err == nil && p.ID != patientID) {
			return apperr.Forbidden("Not authorized to access this " + what)
		}
		return err
	}
	return apperr.Forbidden("Not authorized to access this " + what)
}

func (s *Service) GetRecord(ctx context.Context, accountID uuid.UUID, role auth.Role, id uuid.UUID) (*MedicalRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, apperr.NotFound("Medical record not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, accountID, role, rec.PatientID, "record"); err != nil {
		return nil, err
	}
	if err := s.attachVisits(ctx, []*MedicalRecord{rec}); err != nil {
		return nil, err
	}
	if p, err := s.profiles.GetPatient(ctx, rec.PatientID); err == nil {
		rec.Patient = p.Summary()
	}
	return rec, nil
}

func (s *Service) GetVisit(ctx context.Context, accountID uuid.UUID, role auth.Role, id uuid.UUID) (*Visit, error) {
	v, err := s.visits.GetByID(ctx, id)
	if errors.Is(err, ErrVisitNotFound) {
		return nil, apperr.NotFound("Visit not found")
	}
	if err != nil {
		return nil, err
	}
	rec, err := s.records.GetByID(ctx, v.MedicalRecordID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, accountID, role, rec.PatientID, "visit"); err != nil {
		return nil, err
	}
	if err := s.populateVisits(ctx, []*Visit{v}); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) GetPrescription(ctx context.Context, accountID uuid.UUID, role auth.Role, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if errors.Is(err, ErrPrescriptionNotFound) {
		return nil, apperr.NotFound("Prescription not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, accountID, role, p.PatientID, "prescription"); err != nil {
		return nil, err
	}
	refs, err := s.profiles.DoctorRefs(ctx, []uuid.UUID{p.DoctorID})
	if err != nil {
		return nil, err
	}
	p.Doctor = refs[p.DoctorID]
	return p, nil
}

func (s *Service) GetReport(ctx context.Context, accountID uuid.UUID, role auth.Role, id uuid.UUID) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if errors.Is(err, ErrReportNotFound) {
		return nil, apperr.NotFound("Report not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, accountID, role, r.PatientID, "report"); err != nil {
		return nil, err
	}
	return r, nil
}
