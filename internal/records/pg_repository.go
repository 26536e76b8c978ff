package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, kind, patient_id, provider_id, appointment_id, status, urgent, fields, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var fields []byte

	err := row.Scan(
		&r.ID,
		&r.Kind,
		&r.PatientID,
		&r.ProviderID,
		&r.AppointmentID,
		&r.Status,
		&r.Urgent,
		&fields,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(fields, &r.Fields); err != nil {
		return nil, fmt.Errorf("decode record fields: %w", err)
	}
	return &r, nil
}

func (p *PgRepository) Create(ctx context.Context, r *Record) error {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("encode record fields: %w", err)
	}

	err = p.pool.QueryRow(ctx, `
		INSERT INTO clinical_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`, r.ID, r.Kind, r.PatientID, r.ProviderID, r.AppointmentID, r.Status, r.Urgent, fields).
		Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (p *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM clinical_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (p *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE clinical_records
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+recordColumns, id, to, from)
	return scanRecord(row)
}

func (p *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, kind Kind) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM clinical_records
		WHERE patient_id = $1
		  AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC
	`, patientID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}
