package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sonali2314/MediCardPlus/internal/domain/account"
	"github.com/Sonali2314/MediCardPlus/internal/platform/db"
)

type directoryPG struct {
	pool *pgxpool.Pool
}

func NewDoctorDirectory(pool *pgxpool.Pool) DoctorDirectory {
	return &directoryPG{pool: pool}
}

func (r *directoryPG) ListDoctors(ctx context.Context, status account.ApprovalStatus, limit, offset int) ([]*DoctorListing, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM accounts
		WHERE role = 'doctor' AND ($1 = '' OR approval_status = $1)`, string(status)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT a.id, a.email, a.approval_status, a.is_verified, a.reviewed_at, a.created_at,
			COALESCE(d.doctor_code, ''), COALESCE(d.name, ''), COALESCE(d.specialization, ''),
			COALESCE(d.hospital_name, ''), COALESCE(d.registration_number, ''),
			COALESCE(d.contact_number, ''), COALESCE(d.medical_license, '')
		FROM accounts a
		LEFT JOIN doctors d ON d.account_id = a.id
		WHERE a.role = 'doctor' AND ($1 = '' OR a.approval_status = $1)
		ORDER BY a.created_at DESC
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []*DoctorListing
	for rows.Next() {
		var d DoctorListing
		if err := rows.Scan(&d.ID, &d.Email, &d.ApprovalStatus, &d.IsVerified, &d.ReviewedAt, &d.CreatedAt,
			&d.DoctorID, &d.Name, &d.Specialization, &d.HospitalName, &d.RegistrationNumber,
			&d.ContactNumber, &d.MedicalLicense); err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		d.fillPlaceholders()
		out = append(out, &d)
	}
	return out, total, rows.Err()
}
