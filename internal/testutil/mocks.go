package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockTxManager is a mock implementation of domain.TxManager. It serializes
// callbacks with a mutex; the Tx handle is an opaque marker.
type MockTxManager struct {
	mu sync.Mutex
}

// NewMockTxManager creates a new MockTxManager
func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithinTx runs fn under the store mutex
func (m *MockTxManager) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

// MockLoanRepository is a mock implementation of domain.LoanRepository
type MockLoanRepository struct {
	Loans  map[int64]*domain.Loan
	Shares *MockLoanShareRepository
	NextID int64
}

// NewMockLoanRepository creates a new MockLoanRepository. Shares must be set
// for ListByBorrower to resolve borrowers.
func NewMockLoanRepository(shares *MockLoanShareRepository) *MockLoanRepository {
	return &MockLoanRepository{
		Loans:  make(map[int64]*domain.Loan),
		Shares: shares,
		NextID: 1,
	}
}

// Create creates a new loan
func (m *MockLoanRepository) Create(ctx context.Context, tx domain.Tx, loan *domain.Loan) (*domain.Loan, error) {
	loan.ID = m.NextID
	m.NextID++
	copied := *loan
	m.Loans[loan.ID] = &copied
	return loan, nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(ctx context.Context, tx domain.Tx, id int64) (*domain.Loan, error) {
	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	copied := *loan
	return &copied, nil
}

// ListByBorrower retrieves loans the borrower holds a share of
func (m *MockLoanRepository) ListByBorrower(ctx context.Context, borrower string) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	for _, share := range m.Shares.Shares {
		if share.Borrower != borrower {
			continue
		}
		if loan, ok := m.Loans[share.LoanID]; ok {
			copied := *loan
			loans = append(loans, &copied)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
	return loans, nil
}

// Update updates an existing loan
func (m *MockLoanRepository) Update(ctx context.Context, tx domain.Tx, loan *domain.Loan) error {
	if _, ok := m.Loans[loan.ID]; !ok {
		return domain.ErrLoanNotFound
	}
	copied := *loan
	m.Loans[loan.ID] = &copied
	return nil
}

// MockLoanShareRepository is a mock implementation of domain.LoanShareRepository
type MockLoanShareRepository struct {
	Shares map[int64]*domain.LoanShare
	NextID int64
}

// NewMockLoanShareRepository creates a new MockLoanShareRepository
func NewMockLoanShareRepository() *MockLoanShareRepository {
	return &MockLoanShareRepository{
		Shares: make(map[int64]*domain.LoanShare),
		NextID: 1,
	}
}

// Create creates a new loan share
func (m *MockLoanShareRepository) Create(ctx context.Context, tx domain.Tx, share *domain.LoanShare) (*domain.LoanShare, error) {
	share.ID = m.NextID
	m.NextID++
	copied := *share
	m.Shares[share.ID] = &copied
	return share, nil
}

// GetByID retrieves a loan share by ID
func (m *MockLoanShareRepository) GetByID(ctx context.Context, tx domain.Tx, id int64) (*domain.LoanShare, error) {
	share, ok := m.Shares[id]
	if !ok {
		return nil, domain.ErrLoanShareNotFound
	}
	copied := *share
	return &copied, nil
}

// ListByLoan retrieves all shares of a loan
func (m *MockLoanShareRepository) ListByLoan(ctx context.Context, tx domain.Tx, loanID int64) ([]*domain.LoanShare, error) {
	var shares []*domain.LoanShare
	for _, share := range m.Shares {
		if share.LoanID == loanID {
			copied := *share
			shares = append(shares, &copied)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
	return shares, nil
}

// Update updates an existing loan share
func (m *MockLoanShareRepository) Update(ctx context.Context, tx domain.Tx, share *domain.LoanShare) error {
	if _, ok := m.Shares[share.ID]; !ok {
		return domain.ErrLoanShareNotFound
	}
	copied := *share
	m.Shares[share.ID] = &copied
	return nil
}

// MockInstallmentRepository is a mock implementation of domain.InstallmentRepository
type MockInstallmentRepository struct {
	Installments map[int64]*domain.Installment
	Shares       *MockLoanShareRepository
	NextID       int64
}

// NewMockInstallmentRepository creates a new MockInstallmentRepository.
// Shares must be set for ListOpenForAccrual to filter by share status.
func NewMockInstallmentRepository(shares *MockLoanShareRepository) *MockInstallmentRepository {
	return &MockInstallmentRepository{
		Installments: make(map[int64]*domain.Installment),
		Shares:       shares,
		NextID:       1,
	}
}

// CreateBatch inserts a share's schedule
func (m *MockInstallmentRepository) CreateBatch(ctx context.Context, tx domain.Tx, installments []*domain.Installment) error {
	for _, installment := range installments {
		installment.ID = m.NextID
		m.NextID++
		copied := *installment
		m.Installments[installment.ID] = &copied
	}
	return nil
}

// GetForUpdate retrieves an installment; the mock does not lock
func (m *MockInstallmentRepository) GetForUpdate(ctx context.Context, tx domain.Tx, id int64) (*domain.Installment, error) {
	installment, ok := m.Installments[id]
	if !ok {
		return nil, domain.ErrInstallmentNotFound
	}
	copied := *installment
	return &copied, nil
}

// ListByShare retrieves a share's installments in schedule order
func (m *MockInstallmentRepository) ListByShare(ctx context.Context, tx domain.Tx, shareID int64) ([]*domain.Installment, error) {
	var installments []*domain.Installment
	for _, installment := range m.Installments {
		if installment.LoanShareID == shareID {
			copied := *installment
			installments = append(installments, &copied)
		}
	}
	sort.Slice(installments, func(i, j int) bool { return installments[i].Order < installments[j].Order })
	return installments, nil
}

// UpdateStatus persists an installment's status
func (m *MockInstallmentRepository) UpdateStatus(ctx context.Context, tx domain.Tx, id int64, status domain.InstallmentStatus) error {
	installment, ok := m.Installments[id]
	if !ok {
		return domain.ErrInstallmentNotFound
	}
	installment.Status = status
	return nil
}

// ListOpenForAccrual retrieves installments of approved shares still owing principal
func (m *MockInstallmentRepository) ListOpenForAccrual(ctx context.Context) ([]*domain.Installment, error) {
	var installments []*domain.Installment
	for _, installment := range m.Installments {
		if installment.Status.PrincipalSettled() {
			continue
		}
		share, ok := m.Shares.Shares[installment.LoanShareID]
		if !ok || share.Status != domain.LoanStatusApproved {
			continue
		}
		copied := *installment
		installments = append(installments, &copied)
	}
	sort.Slice(installments, func(i, j int) bool { return installments[i].ID < installments[j].ID })
	return installments, nil
}

// MockRepaymentRepository is a mock implementation of domain.RepaymentRepository
type MockRepaymentRepository struct {
	Repayments map[uuid.UUID]*domain.LoanRepayment
	Details    map[int64]*domain.InstallmentDetail
	Refs       map[string]bool
	NextID     int64
}

// NewMockRepaymentRepository creates a new MockRepaymentRepository
func NewMockRepaymentRepository() *MockRepaymentRepository {
	return &MockRepaymentRepository{
		Repayments: make(map[uuid.UUID]*domain.LoanRepayment),
		Details:    make(map[int64]*domain.InstallmentDetail),
		Refs:       make(map[string]bool),
		NextID:     1,
	}
}

// Create records a repayment, rejecting duplicate payment references
func (m *MockRepaymentRepository) Create(ctx context.Context, tx domain.Tx, repayment *domain.LoanRepayment) error {
	if m.Refs[repayment.PaymentRef] {
		return domain.ErrDuplicatePayment
	}
	m.Refs[repayment.PaymentRef] = true
	copied := *repayment
	m.Repayments[repayment.ID] = &copied
	return nil
}

// GetOrCreateDetail returns the ledger line for (installment, repayment),
// creating a zero line on first use
func (m *MockRepaymentRepository) GetOrCreateDetail(ctx context.Context, tx domain.Tx, installmentID int64, repaymentID uuid.UUID) (*domain.InstallmentDetail, error) {
	for _, detail := range m.Details {
		if detail.InstallmentID == installmentID && detail.RepaymentID == repaymentID {
			copied := *detail
			return &copied, nil
		}
	}
	detail := &domain.InstallmentDetail{
		ID:            m.NextID,
		InstallmentID: installmentID,
		RepaymentID:   repaymentID,
		Amount:        decimal.Zero,
		PenaltyAmount: decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	m.NextID++
	m.Details[detail.ID] = detail
	copied := *detail
	return &copied, nil
}

// UpdateDetail persists a ledger line's amounts
func (m *MockRepaymentRepository) UpdateDetail(ctx context.Context, tx domain.Tx, detail *domain.InstallmentDetail) error {
	if _, ok := m.Details[detail.ID]; !ok {
		return domain.ErrInstallmentNotFound
	}
	copied := *detail
	m.Details[detail.ID] = &copied
	return nil
}

// ListDetailsByInstallment retrieves an installment's ledger lines
func (m *MockRepaymentRepository) ListDetailsByInstallment(ctx context.Context, tx domain.Tx, installmentID int64) ([]*domain.InstallmentDetail, error) {
	var details []*domain.InstallmentDetail
	for _, detail := range m.Details {
		if detail.InstallmentID == installmentID {
			copied := *detail
			details = append(details, &copied)
		}
	}
	sort.Slice(details, func(i, j int) bool { return details[i].ID < details[j].ID })
	return details, nil
}

// MockPenaltyRepository is a mock implementation of domain.PenaltyRepository
type MockPenaltyRepository struct {
	Penalties map[int64]*domain.Penalty
	NextID    int64
}

// NewMockPenaltyRepository creates a new MockPenaltyRepository
func NewMockPenaltyRepository() *MockPenaltyRepository {
	return &MockPenaltyRepository{
		Penalties: make(map[int64]*domain.Penalty),
		NextID:    1,
	}
}

// Create inserts a penalty row
func (m *MockPenaltyRepository) Create(ctx context.Context, tx domain.Tx, penalty *domain.Penalty) error {
	penalty.ID = m.NextID
	m.NextID++
	copied := *penalty
	m.Penalties[penalty.ID] = &copied
	return nil
}

// UpdateAmount rewrites one penalty row's cumulative amount
func (m *MockPenaltyRepository) UpdateAmount(ctx context.Context, tx domain.Tx, id int64, amount decimal.Decimal) error {
	penalty, ok := m.Penalties[id]
	if !ok {
		return domain.ErrInstallmentNotFound
	}
	penalty.Amount = amount
	return nil
}

// DeleteAfter removes penalty rows dated strictly after the given date
func (m *MockPenaltyRepository) DeleteAfter(ctx context.Context, tx domain.Tx, installmentID int64, after time.Time) (int64, error) {
	var removed int64
	for id, penalty := range m.Penalties {
		if penalty.InstallmentID == installmentID && penalty.Date.After(after) {
			delete(m.Penalties, id)
			removed++
		}
	}
	return removed, nil
}

// ListByInstallment retrieves an installment's penalty rows in date order
func (m *MockPenaltyRepository) ListByInstallment(ctx context.Context, tx domain.Tx, installmentID int64) ([]*domain.Penalty, error) {
	var penalties []*domain.Penalty
	for _, penalty := range m.Penalties {
		if penalty.InstallmentID == installmentID {
			copied := *penalty
			penalties = append(penalties, &copied)
		}
	}
	sort.Slice(penalties, func(i, j int) bool { return penalties[i].Date.Before(penalties[j].Date) })
	return penalties, nil
}
