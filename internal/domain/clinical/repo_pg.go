package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sonali2314/MediCardPlus/internal/platform/db"
)

// -- Medical Record Repository --

type recordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

const recordCols = `id, patient_id, disease_name, description, status, created_at, updated_at`

func (r *recordRepoPG) FindOrCreate(ctx context.Context, rec *MedicalRecord) error {
	if rec.Status == "" {
		rec.Status = StatusActive
	}
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, disease_name, description, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id, disease_name) DO UPDATE SET updated_at = NOW()
		RETURNING `+recordCols,
		uuid.New(), rec.PatientID, rec.DiseaseName, rec.Description, rec.Status)
	got, err := scanRecord(row)
	if err != nil {
		return fmt.Errorf("upsert medical record: %w", err)
	}
	*rec = *got
	return nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+recordCols+` FROM medical_records
		WHERE patient_id = $1 ORDER BY updated_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()
	var out []*MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DiseaseName, &rec.Description, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan medical record: %w", err)
	}
	return &rec, nil
}

// -- Visit Repository --

type visitRepoPG struct {
	pool *pgxpool.Pool
}

func NewVisitRepo(pool *pgxpool.Pool) VisitRepository {
	return &visitRepoPG{pool: pool}
}

const visitCols = `id, medical_record_id, doctor_id, visit_date, symptoms, diagnosis, notes, follow_up_date, created_at`

func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO visits (id, medical_record_id, doctor_id, visit_date, symptoms, diagnosis, notes, follow_up_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		v.ID, v.MedicalRecordID, v.DoctorID, v.VisitDate, v.Symptoms, v.Diagnosis, v.Notes, v.FollowUpDate,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *visitRepoPG) ListByRecords(ctx context.Context, recordIDs []uuid.UUID) ([]*Visit, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+visitCols+` FROM visits
		WHERE medical_record_id = ANY($1) ORDER BY visit_date DESC`, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()
	var out []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.MedicalRecordID, &v.DoctorID, &v.VisitDate, &v.Symptoms, &v.Diagnosis, &v.Notes, &v.FollowUpDate, &v.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan visit: %w", err)
	}
	return &v, nil
}

// -- Prescription Repository --

type prescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepo(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const prescriptionCols = `id, visit_id, doctor_id, patient_id, medications, additional_instructions, created_at`

// Medications are stored as JSONB; pgx encodes and decodes the slice with
// encoding/json.
func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	if p.Medications == nil {
		p.Medications = []Medication{}
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO prescriptions (id, visit_id, doctor_id, patient_id, medications, additional_instructions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		p.ID, p.VisitID, p.DoctorID, p.PatientID, p.Medications, p.AdditionalInstructions,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) ListByVisits(ctx context.Context, visitIDs []uuid.UUID) (map[uuid.UUID]*Prescription, error) {
	out := make(map[uuid.UUID]*Prescription)
	if len(visitIDs) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+prescriptionCols+` FROM prescriptions WHERE visit_id = ANY($1)`, visitIDs)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out[p.VisitID] = p
	}
	return out, rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.VisitID, &p.DoctorID, &p.PatientID, &p.Medications, &p.AdditionalInstructions, &p.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan prescription: %w", err)
	}
	return &p, nil
}

// -- Report Repository --

type reportRepoPG struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pool: pool}
}

const reportCols = `id, visit_id, patient_id, report_type, report_file, report_date, lab_name, notes, created_at`

func (r *reportRepoPG) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO reports (id, visit_id, patient_id, report_type, report_file, lab_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING report_date, created_at`,
		rep.ID, rep.VisitID, rep.PatientID, rep.ReportType, rep.ReportFile, rep.LabName, rep.Notes,
	).Scan(&rep.ReportDate, &rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return scanReport(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
}

func (r *reportRepoPG) ListByVisits(ctx context.Context, visitIDs []uuid.UUID) (map[uuid.UUID][]*Report, error) {
	out := make(map[uuid.UUID][]*Report)
	if len(visitIDs) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+reportCols+` FROM reports
		WHERE visit_id = ANY($1) ORDER BY report_date`, visitIDs)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out[rep.VisitID] = append(out[rep.VisitID], rep)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.VisitID, &rep.PatientID, &rep.ReportType, &rep.ReportFile, &rep.ReportDate, &rep.LabName, &rep.Notes, &rep.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &rep, nil
}

// -- Allergy Repository --

type allergyRepoPG struct {
	pool *pgxpool.Pool
}

func NewAllergyRepo(pool *pgxpool.Pool) AllergyRepository {
	return &allergyRepoPG{pool: pool}
}

const allergyCols = `id, patient_id, name, severity, diagnosed_by, diagnosed_date, notes, created_at`

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO allergies (id, patient_id, name, severity, diagnosed_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING diagnosed_date, created_at`,
		a.ID, a.PatientID, a.Name, a.Severity, a.DiagnosedByID, a.Notes,
	).Scan(&a.DiagnosedDate, &a.CreatedAt)
	if db.IsUniqueViolation(err, "allergies_patient_name_key") {
		return ErrDuplicateAllergy
	}
	if err != nil {
		return fmt.Errorf("insert allergy: %w", err)
	}
	return nil
}

func (r *allergyRepoPG) ExistsByName(ctx context.Context, patientID uuid.UUID, name string) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM allergies WHERE patient_id = $1 AND LOWER(name) = LOWER($2))`,
		patientID, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check allergy: %w", err)
	}
	return exists, nil
}

func (r *allergyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+allergyCols+` FROM allergies
		WHERE patient_id = $1 ORDER BY diagnosed_date DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list allergies: %w", err)
	}
	defer rows.Close()
	var out []*Allergy
	for rows.Next() {
		var a Allergy
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Name, &a.Severity, &a.DiagnosedByID, &a.DiagnosedDate, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan allergy: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
