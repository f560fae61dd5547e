package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sonali2314/MediCardPlus/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, account_id, patient_code, full_name, age, gender, contact_number, address,
	government_id, blood_group, emergency_name, emergency_relation, emergency_phone,
	profile_picture, digital_card, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	ec := emergencyOrEmpty(p.EmergencyContact)
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (
			id, account_id, patient_code, full_name, age, gender, contact_number, address,
			government_id, blood_group, emergency_name, emergency_relation, emergency_phone,
			profile_picture, digital_card
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		p.ID, p.AccountID, p.PatientID, p.FullName, p.Age, p.Gender, p.ContactNumber, p.Address,
		p.GovernmentID, p.BloodGroup, ec.Name, ec.Relation, ec.Phone,
		p.ProfilePicture, p.DigitalCard,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, "patients_patient_code_key") {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE account_id = $1`, accountID))
}

func (r *patientRepoPG) GetByPatientCode(ctx context.Context, code string) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE patient_code = $1`, code))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	ec := emergencyOrEmpty(p.EmergencyContact)
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET
			full_name = $2, age = $3, gender = $4, contact_number = $5, address = $6,
			blood_group = $7, emergency_name = $8, emergency_relation = $9, emergency_phone = $10,
			profile_picture = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FullName, p.Age, p.Gender, p.ContactNumber, p.Address,
		p.BloodGroup, ec.Name, ec.Relation, ec.Phone,
		p.ProfilePicture,
	).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) SetDigitalCard(ctx context.Context, id uuid.UUID, cardURL string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE patients SET digital_card = $2, updated_at = NOW() WHERE id = $1`, id, cardURL)
	if err != nil {
		return fmt.Errorf("set digital card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *patientRepoPG) Search(ctx context.Context, query string, limit int) ([]*Patient, error) {
	pattern := db.ContainsPattern(query)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE full_name ILIKE $1 OR patient_code ILIKE $1 OR contact_number ILIKE $1
		ORDER BY full_name
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *patientRepoPG) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patients WHERE account_id = $1`, accountID)
	return err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var ec EmergencyContact
	err := row.Scan(
		&p.ID, &p.AccountID, &p.PatientID, &p.FullName, &p.Age, &p.Gender, &p.ContactNumber, &p.Address,
		&p.GovernmentID, &p.BloodGroup, &ec.Name, &ec.Relation, &ec.Phone,
		&p.ProfilePicture, &p.DigitalCard, &p.CreatedAt, &p.UpdatedAt,
	)
	if db.IsNoRows(err) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	if ec.Name != "" {
		p.EmergencyContact = &ec
	}
	return &p, nil
}

func emergencyOrEmpty(ec *EmergencyContact) EmergencyContact {
	if ec == nil {
		return EmergencyContact{}
	}
	return *ec
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, account_id, doctor_code, name, specialization, hospital_name,
	registration_number, contact_number, medical_license, profile_picture, created_at, updated_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (
			id, account_id, doctor_code, name, specialization, hospital_name,
			registration_number, contact_number, medical_license, profile_picture
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		d.ID, d.AccountID, d.DoctorID, d.Name, d.Specialization, d.HospitalName,
		d.RegistrationNumber, d.ContactNumber, d.MedicalLicense, d.ProfilePicture,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, "doctors_registration_number_key"):
		return ErrDuplicateRegistration
	case db.IsUniqueViolation(err, "doctors_doctor_code_key"):
		return ErrDuplicateCode
	case err != nil:
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE account_id = $1`, accountID))
}

func (r *doctorRepoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error) {
	out := make(map[uuid.UUID]*Doctor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctors SET
			name = $2, specialization = $3, hospital_name = $4, contact_number = $5,
			profile_picture = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Name, d.Specialization, d.HospitalName, d.ContactNumber, d.ProfilePicture,
	).Scan(&d.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrDoctorNotFound
	}
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM doctors WHERE account_id = $1`, accountID)
	return err
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.AccountID, &d.DoctorID, &d.Name, &d.Specialization, &d.HospitalName,
		&d.RegistrationNumber, &d.ContactNumber, &d.MedicalLicense, &d.ProfilePicture,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if db.IsNoRows(err) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	return &d, nil
}
