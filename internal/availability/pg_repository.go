package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) TemplateAt(ctx context.Context, providerID uuid.UUID, date time.Time) (*Template, error) {
	var definition []byte
	err := r.pool.QueryRow(ctx, `
		SELECT definition
		FROM availability_templates
		WHERE provider_id = $1
		  AND effective_from <= $2
		ORDER BY effective_from DESC
		LIMIT 1
	`, providerID, date).Scan(&definition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	var tmpl Template
	if err := json.Unmarshal(definition, &tmpl); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &tmpl, nil
}

// SaveTemplate writes the template and clears later overrides in one transaction.
func (r *PgRepository) SaveTemplate(ctx context.Context, providerID uuid.UUID, effectiveFrom time.Time, tmpl Template) error {
	definition, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_templates (provider_id, effective_from, name, definition, created_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (provider_id, effective_from)
			DO UPDATE SET name = EXCLUDED.name, definition = EXCLUDED.definition, created_at = now()
		`, providerID, effectiveFrom, tmpl.Name, definition)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM day_overrides WHERE provider_id = $1 AND date >= $2`, providerID, effectiveFrom); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM slot_overrides WHERE provider_id = $1 AND date >= $2`, providerID, effectiveFrom)
		return err
	})
}

func (r *PgRepository) ListDayOverrides(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]DayOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, date, is_working
		FROM day_overrides
		WHERE provider_id = $1 AND date >= $2 AND date < $3
		ORDER BY date
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DayOverride
	for rows.Next() {
		var o DayOverride
		if err := rows.Scan(&o.ProviderID, &o.Date, &o.Working); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListSlotOverrides(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]SlotOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, date, minute, available
		FROM slot_overrides
		WHERE provider_id = $1 AND date >= $2 AND date < $3
		ORDER BY date, minute
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotOverride
	for rows.Next() {
		var o SlotOverride
		if err := rows.Scan(&o.ProviderID, &o.Date, &o.Time, &o.Available); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpsertDayOverride(ctx context.Context, o DayOverride) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO day_overrides (provider_id, date, is_working, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (provider_id, date)
		DO UPDATE SET is_working = EXCLUDED.is_working, updated_at = now()
	`, o.ProviderID, o.Date, o.Working)
	return err
}

func (r *PgRepository) DeleteDayOverride(ctx context.Context, providerID uuid.UUID, date time.Time) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM day_overrides WHERE provider_id = $1 AND date = $2`, providerID, date)
	return err
}

func (r *PgRepository) UpsertSlotOverride(ctx context.Context, o SlotOverride) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slot_overrides (provider_id, date, minute, available, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (provider_id, date, minute)
		DO UPDATE SET available = EXCLUDED.available, updated_at = now()
	`, o.ProviderID, o.Date, o.Time, o.Available)
	return err
}

func (r *PgRepository) ResetDay(ctx context.Context, o DayOverride) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM slot_overrides WHERE provider_id = $1 AND date = $2`, o.ProviderID, o.Date); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO day_overrides (provider_id, date, is_working, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (provider_id, date)
			DO UPDATE SET is_working = EXCLUDED.is_working, updated_at = now()
		`, o.ProviderID, o.Date, o.Working)
		return err
	})
}

func (r *PgRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
