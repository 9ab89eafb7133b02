package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PenaltyRepository implements domain.PenaltyRepository using PostgreSQL
type PenaltyRepository struct {
	pool *pgxpool.Pool
}

// NewPenaltyRepository creates a new PenaltyRepository
func NewPenaltyRepository(pool *pgxpool.Pool) *PenaltyRepository {
	return &PenaltyRepository{pool: pool}
}

// Create inserts one day's cumulative penalty row
func (r *PenaltyRepository) Create(ctx context.Context, tx domain.Tx, penalty *domain.Penalty) error {
	amount, err := decimalToPgNumeric(penalty.Amount)
	if err != nil {
		return fmt.Errorf("invalid penalty amount: %w", err)
	}

	err = resolve(r.pool, tx).QueryRow(ctx, `
		INSERT INTO penalties (installment_id, penalty_date, amount)
		VALUES ($1, $2, $3)
		RETURNING id`,
		penalty.InstallmentID, penalty.Date, amount,
	).Scan(&penalty.ID)
	if err != nil {
		return fmt.Errorf("create penalty: %w", err)
	}
	return nil
}

// UpdateAmount rewrites one penalty row's cumulative amount
func (r *PenaltyRepository) UpdateAmount(ctx context.Context, tx domain.Tx, id int64, amount decimal.Decimal) error {
	value, err := decimalToPgNumeric(amount)
	if err != nil {
		return fmt.Errorf("invalid penalty amount: %w", err)
	}

	tag, err := resolve(r.pool, tx).Exec(ctx,
		`UPDATE penalties SET amount = $2 WHERE id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("update penalty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update penalty: no row with id %d", id)
	}
	return nil
}

// DeleteAfter removes penalty rows dated strictly after the given date
func (r *PenaltyRepository) DeleteAfter(ctx context.Context, tx domain.Tx, installmentID int64, after time.Time) (int64, error) {
	tag, err := resolve(r.pool, tx).Exec(ctx,
		`DELETE FROM penalties WHERE installment_id = $1 AND penalty_date > $2`,
		installmentID, after)
	if err != nil {
		return 0, fmt.Errorf("delete penalties: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByInstallment retrieves an installment's penalty rows in date order
func (r *PenaltyRepository) ListByInstallment(ctx context.Context, tx domain.Tx, installmentID int64) ([]*domain.Penalty, error) {
	rows, err := resolve(r.pool, tx).Query(ctx, `
		SELECT id, installment_id, penalty_date, amount
		FROM penalties WHERE installment_id = $1
		ORDER BY penalty_date`, installmentID)
	if err != nil {
		return nil, fmt.Errorf("list penalties: %w", err)
	}
	defer rows.Close()

	var penalties []*domain.Penalty
	for rows.Next() {
		var (
			penalty domain.Penalty
			amount  pgtype.Numeric
		)
		if err := rows.Scan(&penalty.ID, &penalty.InstallmentID, &penalty.Date, &amount); err != nil {
			return nil, fmt.Errorf("list penalties: %w", err)
		}
		penalty.Amount = pgNumericToDecimal(amount)
		penalties = append(penalties, &penalty)
	}
	return penalties, rows.Err()
}
