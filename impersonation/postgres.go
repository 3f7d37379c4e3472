package impersonation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/saasgate/tenant-gateway/internal/errors"
)

type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepo implements Repo on postgres. End uses a conditional update
// keyed on status so that a record, once closed, can never be reopened or
// rewritten by a racing replica.
type PostgresRepo struct {
	db pgDB
}

// NewPostgresRepo creates a new postgres-backed impersonation repository
func NewPostgresRepo(db pgDB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Create stores a new record
func (r *PostgresRepo) Create(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO impersonation_records
		(id, tenant_id, impersonator_id, impersonated_user_id, reason, started_at, ended_at, expires_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.TenantID, rec.ImpersonatorID, nullable(rec.ImpersonatedUserID), rec.Reason, rec.StartedAt, rec.EndedAt, rec.ExpiresAt, string(rec.Status))
	if err != nil {
		return errors.Wrapf(err, "failed to insert impersonation record %s", rec.ID)
	}
	return nil
}

// Get retrieves a record by ID
func (r *PostgresRepo) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, impersonator_id, COALESCE(impersonated_user_id, ''), reason, started_at, ended_at, expires_at, status
		FROM impersonation_records WHERE id=$1
	`, id)

	var rec Record
	var status string
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.ImpersonatorID, &rec.ImpersonatedUserID, &rec.Reason, &rec.StartedAt, &rec.EndedAt, &rec.ExpiresAt, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, errors.ErrRecordNotFound
		}
		return Record{}, errors.Wrapf(err, "failed to load impersonation record %s", id)
	}
	rec.Status = Status(status)
	return rec, nil
}

// End closes an Active record; the conditional update makes it a no-op
// for records in any other status
func (r *PostgresRepo) End(ctx context.Context, id string, endedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE impersonation_records
		SET status=$2, ended_at=$3
		WHERE id=$1 AND status=$4
	`, id, string(StatusEnded), endedAt, string(StatusActive))
	if err != nil {
		return errors.Wrapf(err, "failed to end impersonation record %s", id)
	}
	if tag.RowsAffected() == 0 {
		// Either the record is already closed (fine) or it never
		// existed (not fine).
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// EnsureSchema creates the audit table if it does not exist. Called once
// at startup.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS impersonation_records (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			impersonator_id TEXT NOT NULL,
			impersonated_user_id TEXT,
			reason TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL
		)
	`)
	return errors.Wrapf(err, "failed to ensure impersonation schema")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
