package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sonali2314/MediCardPlus/internal/platform/auth"
	"github.com/Sonali2314/MediCardPlus/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const accountCols = `id, email, password_hash, role, is_verified, approval_status, reviewed_by, reviewed_at, created_at`

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE email = $1`, email))
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, role, is_verified, approval_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		a.ID, a.Email, a.PasswordHash, string(a.Role), a.IsVerified, nullableStatus(a.ApprovalStatus),
	).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err, "accounts_email_key") {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *repoPG) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE accounts SET is_verified = $2 WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus, verified bool, reviewer uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE accounts
		SET approval_status = $2, is_verified = $3, reviewed_by = $4, reviewed_at = NOW()
		WHERE id = $1 AND role = 'doctor'`,
		id, string(status), verified, reviewer)
	if err != nil {
		return fmt.Errorf("update approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+accountCols+` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collect(rows, total)
}

func (r *repoPG) ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*Account, int, error) {
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE role = $1`, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE role = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(role), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return collect(rows, total)
}

func (r *repoPG) CountByRole(ctx context.Context) (map[auth.Role]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT role, COUNT(*) FROM accounts GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count by role: %w", err)
	}
	defer rows.Close()

	out := make(map[auth.Role]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[auth.Role(role)] = n
	}
	return out, rows.Err()
}

func (r *repoPG) CountDoctorsByStatus(ctx context.Context) (map[ApprovalStatus]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT approval_status, COUNT(*) FROM accounts WHERE role = 'doctor' GROUP BY approval_status`)
	if err != nil {
		return nil, fmt.Errorf("count doctors by status: %w", err)
	}
	defer rows.Close()

	out := make(map[ApprovalStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[ApprovalStatus(status)] = n
	}
	return out, rows.Err()
}

func collect(rows pgx.Rows, total int) ([]*Account, int, error) {
	defer rows.Close()
	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var role string
	var status *string
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.IsVerified, &status, &a.ReviewedBy, &a.ReviewedAt, &a.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Role = auth.Role(role)
	if status != nil {
		a.ApprovalStatus = ApprovalStatus(*status)
	}
	return &a, nil
}

func nullableStatus(s ApprovalStatus) *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}
