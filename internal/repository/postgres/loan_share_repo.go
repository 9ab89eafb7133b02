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

// LoanShareRepository implements domain.LoanShareRepository using PostgreSQL
type LoanShareRepository struct {
	pool *pgxpool.Pool
}

// NewLoanShareRepository creates a new LoanShareRepository
func NewLoanShareRepository(pool *pgxpool.Pool) *LoanShareRepository {
	return &LoanShareRepository{pool: pool}
}

// Create inserts a loan share and returns it with its assigned ID
func (r *LoanShareRepository) Create(ctx context.Context, tx domain.Tx, share *domain.LoanShare) (*domain.LoanShare, error) {
	amount, err := decimalToPgNumeric(share.Share)
	if err != nil {
		return nil, fmt.Errorf("invalid share amount: %w", err)
	}

	err = resolve(r.pool, tx).QueryRow(ctx, `
		INSERT INTO loan_shares (loan_id, borrower, share, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		share.LoanID, share.Borrower, amount, string(share.Status),
	).Scan(&share.ID)
	if err != nil {
		return nil, fmt.Errorf("create loan share: %w", err)
	}
	return share, nil
}

// GetByID retrieves a loan share by its ID
func (r *LoanShareRepository) GetByID(ctx context.Context, tx domain.Tx, id int64) (*domain.LoanShare, error) {
	row := resolve(r.pool, tx).QueryRow(ctx, `
		SELECT id, loan_id, borrower, share, status
		FROM loan_shares WHERE id = $1`, id)

	share, err := scanLoanShare(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanShareNotFound
		}
		return nil, fmt.Errorf("get loan share: %w", err)
	}
	return share, nil
}

// ListByLoan retrieves all shares of a loan in creation order
func (r *LoanShareRepository) ListByLoan(ctx context.Context, tx domain.Tx, loanID int64) ([]*domain.LoanShare, error) {
	rows, err := resolve(r.pool, tx).Query(ctx, `
		SELECT id, loan_id, borrower, share, status
		FROM loan_shares WHERE loan_id = $1
		ORDER BY id`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list loan shares: %w", err)
	}
	defer rows.Close()

	var shares []*domain.LoanShare
	for rows.Next() {
		share, err := scanLoanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("list loan shares: %w", err)
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

// Update persists a loan share's status
func (r *LoanShareRepository) Update(ctx context.Context, tx domain.Tx, share *domain.LoanShare) error {
	tag, err := resolve(r.pool, tx).Exec(ctx,
		`UPDATE loan_shares SET status = $2 WHERE id = $1`,
		share.ID, string(share.Status))
	if err != nil {
		return fmt.Errorf("update loan share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanShareNotFound
	}
	return nil
}

func scanLoanShare(row pgx.Row) (*domain.LoanShare, error) {
	var (
		share  domain.LoanShare
		amount pgtype.Numeric
		status string
	)
	if err := row.Scan(&share.ID, &share.LoanID, &share.Borrower, &amount, &status); err != nil {
		return nil, err
	}
	share.Share = pgNumericToDecimal(amount)
	share.Status = domain.LoanStatus(status)
	return &share, nil
}
