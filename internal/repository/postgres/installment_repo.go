package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InstallmentRepository implements domain.InstallmentRepository using PostgreSQL
type InstallmentRepository struct {
	pool *pgxpool.Pool
}

// NewInstallmentRepository creates a new InstallmentRepository
func NewInstallmentRepository(pool *pgxpool.Pool) *InstallmentRepository {
	return &InstallmentRepository{pool: pool}
}

// CreateBatch inserts a share's full schedule
func (r *InstallmentRepository) CreateBatch(ctx context.Context, tx domain.Tx, installments []*domain.Installment) error {
	q := resolve(r.pool, tx)
	for _, installment := range installments {
		amount, err := decimalToPgNumeric(installment.SuggestedAmount)
		if err != nil {
			return fmt.Errorf("invalid suggested amount: %w", err)
		}
		err = q.QueryRow(ctx, `
			INSERT INTO installments (loan_share_id, seq, due_date, suggested_amount, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			installment.LoanShareID, installment.Order, installment.DueDate,
			amount, string(installment.Status),
		).Scan(&installment.ID)
		if err != nil {
			return fmt.Errorf("create installment: %w", err)
		}
	}
	return nil
}

// GetForUpdate retrieves an installment and locks its row for the rest of the
// enclosing transaction. With a nil tx this is a plain read.
func (r *InstallmentRepository) GetForUpdate(ctx context.Context, tx domain.Tx, id int64) (*domain.Installment, error) {
	query := `
		SELECT id, loan_share_id, seq, due_date, suggested_amount, status
		FROM installments WHERE id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	installment, err := scanInstallment(resolve(r.pool, tx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstallmentNotFound
		}
		return nil, fmt.Errorf("get installment: %w", err)
	}
	return installment, nil
}

// ListByShare retrieves a share's installments in schedule order
func (r *InstallmentRepository) ListByShare(ctx context.Context, tx domain.Tx, shareID int64) ([]*domain.Installment, error) {
	rows, err := resolve(r.pool, tx).Query(ctx, `
		SELECT id, loan_share_id, seq, due_date, suggested_amount, status
		FROM installments WHERE loan_share_id = $1
		ORDER BY seq`, shareID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var installments []*domain.Installment
	for rows.Next() {
		installment, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("list installments: %w", err)
		}
		installments = append(installments, installment)
	}
	return installments, rows.Err()
}

// UpdateStatus persists an installment's derived status
func (r *InstallmentRepository) UpdateStatus(ctx context.Context, tx domain.Tx, id int64, status domain.InstallmentStatus) error {
	tag, err := resolve(r.pool, tx).Exec(ctx,
		`UPDATE installments SET status = $2 WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update installment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstallmentNotFound
	}
	return nil
}

// ListOpenForAccrual retrieves installments of approved shares that still owe
// principal, ordered for deterministic sweeps
func (r *InstallmentRepository) ListOpenForAccrual(ctx context.Context) ([]*domain.Installment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.loan_share_id, i.seq, i.due_date, i.suggested_amount, i.status
		FROM installments i
		JOIN loan_shares s ON s.id = i.loan_share_id
		WHERE s.status = $1 AND i.status IN ($2, $3)
		ORDER BY i.id`,
		string(domain.LoanStatusApproved),
		string(domain.InstallmentUnpaid), string(domain.InstallmentPartiallyPaid))
	if err != nil {
		return nil, fmt.Errorf("list open installments: %w", err)
	}
	defer rows.Close()

	var installments []*domain.Installment
	for rows.Next() {
		installment, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("list open installments: %w", err)
		}
		installments = append(installments, installment)
	}
	return installments, rows.Err()
}

func scanInstallment(row pgx.Row) (*domain.Installment, error) {
	var (
		installment domain.Installment
		amount      pgtype.Numeric
		status      string
	)
	err := row.Scan(&installment.ID, &installment.LoanShareID, &installment.Order,
		&installment.DueDate, &amount, &status)
	if err != nil {
		return nil, err
	}
	installment.SuggestedAmount = pgNumericToDecimal(amount)
	installment.Status = domain.InstallmentStatus(status)
	return &installment, nil
}
