package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// RepaymentRepository implements domain.RepaymentRepository using PostgreSQL
type RepaymentRepository struct {
	pool *pgxpool.Pool
}

// NewRepaymentRepository creates a new RepaymentRepository
func NewRepaymentRepository(pool *pgxpool.Pool) *RepaymentRepository {
	return &RepaymentRepository{pool: pool}
}

// Create inserts a repayment event. A reused payment reference fails with
// ErrDuplicatePayment.
func (r *RepaymentRepository) Create(ctx context.Context, tx domain.Tx, repayment *domain.LoanRepayment) error {
	amount, err := decimalToPgNumeric(repayment.Amount)
	if err != nil {
		return fmt.Errorf("invalid repayment amount: %w", err)
	}

	_, err = resolve(r.pool, tx).Exec(ctx, `
		INSERT INTO loan_repayments (id, loan_share_id, payment_ref, payment_date, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		repayment.ID, repayment.LoanShareID, repayment.PaymentRef,
		repayment.PaymentDate, amount, repayment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicatePayment
		}
		return fmt.Errorf("create repayment: %w", err)
	}
	return nil
}

// GetOrCreateDetail returns the ledger line tying a repayment to an
// installment, creating a zero-amount line on first use
func (r *RepaymentRepository) GetOrCreateDetail(ctx context.Context, tx domain.Tx, installmentID int64, repaymentID uuid.UUID) (*domain.InstallmentDetail, error) {
	detail := &domain.InstallmentDetail{
		InstallmentID: installmentID,
		RepaymentID:   repaymentID,
	}
	var amount, penalty pgtype.Numeric

	// The no-op DO UPDATE makes the conflicting row visible to RETURNING.
	err := resolve(r.pool, tx).QueryRow(ctx, `
		INSERT INTO installment_details (installment_id, repayment_id)
		VALUES ($1, $2)
		ON CONFLICT (installment_id, repayment_id)
		DO UPDATE SET installment_id = EXCLUDED.installment_id
		RETURNING id, amount, penalty_amount, created_at`,
		installmentID, repaymentID,
	).Scan(&detail.ID, &amount, &penalty, &detail.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create installment detail: %w", err)
	}
	detail.Amount = pgNumericToDecimal(amount)
	detail.PenaltyAmount = pgNumericToDecimal(penalty)
	return detail, nil
}

// UpdateDetail persists a ledger line's allocated amounts
func (r *RepaymentRepository) UpdateDetail(ctx context.Context, tx domain.Tx, detail *domain.InstallmentDetail) error {
	amount, err := decimalToPgNumeric(detail.Amount)
	if err != nil {
		return fmt.Errorf("invalid detail amount: %w", err)
	}
	penalty, err := decimalToPgNumeric(detail.PenaltyAmount)
	if err != nil {
		return fmt.Errorf("invalid detail penalty amount: %w", err)
	}

	tag, err := resolve(r.pool, tx).Exec(ctx,
		`UPDATE installment_details SET amount = $2, penalty_amount = $3 WHERE id = $1`,
		detail.ID, amount, penalty)
	if err != nil {
		return fmt.Errorf("update installment detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update installment detail: no row with id %d", detail.ID)
	}
	return nil
}

// ListDetailsByInstallment retrieves an installment's ledger lines in
// creation order
func (r *RepaymentRepository) ListDetailsByInstallment(ctx context.Context, tx domain.Tx, installmentID int64) ([]*domain.InstallmentDetail, error) {
	rows, err := resolve(r.pool, tx).Query(ctx, `
		SELECT id, installment_id, repayment_id, amount, penalty_amount, created_at
		FROM installment_details WHERE installment_id = $1
		ORDER BY id`, installmentID)
	if err != nil {
		return nil, fmt.Errorf("list installment details: %w", err)
	}
	defer rows.Close()

	var details []*domain.InstallmentDetail
	for rows.Next() {
		detail, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("list installment details: %w", err)
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

func scanDetail(row pgx.Row) (*domain.InstallmentDetail, error) {
	var (
		detail          domain.InstallmentDetail
		amount, penalty pgtype.Numeric
	)
	err := row.Scan(&detail.ID, &detail.InstallmentID, &detail.RepaymentID,
		&amount, &penalty, &detail.CreatedAt)
	if err != nil {
		return nil, err
	}
	detail.Amount = pgNumericToDecimal(amount)
	detail.PenaltyAmount = pgNumericToDecimal(penalty)
	return &detail, nil
}
