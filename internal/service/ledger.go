package service

import (
	"context"
	"errors"
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/emibook/emibook-backend/internal/ws"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LedgerDefaults are the system fallbacks applied when a creation request
// omits optional loan terms.
type LedgerDefaults struct {
	Periodicity   domain.Periodicity
	Interest      decimal.Decimal
	ProcessingFee decimal.Decimal
}

// LedgerService composes the schedule generator, payment allocator, penalty
// engine, and status machine into the public ledger operations.
type LedgerService struct {
	txm           domain.TxManager
	loans         domain.LoanRepository
	shares        domain.LoanShareRepository
	installments  domain.InstallmentRepository
	repayments    domain.RepaymentRepository
	penalties     domain.PenaltyRepository
	penaltyEngine *PenaltyEngine
	defaults      LedgerDefaults
	publisher     ws.EventPublisher
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(
	txm domain.TxManager,
	loans domain.LoanRepository,
	shares domain.LoanShareRepository,
	installments domain.InstallmentRepository,
	repayments domain.RepaymentRepository,
	penalties domain.PenaltyRepository,
	penaltyEngine *PenaltyEngine,
	defaults LedgerDefaults,
) *LedgerService {
	return &LedgerService{
		txm:           txm,
		loans:         loans,
		shares:        shares,
		installments:  installments,
		repayments:    repayments,
		penalties:     penalties,
		penaltyEngine: penaltyEngine,
		defaults:      defaults,
		publisher:     &ws.NoOpPublisher{},
	}
}

// SetEventPublisher sets the publisher for real-time ledger events.
func (s *LedgerService) SetEventPublisher(publisher ws.EventPublisher) {
	if publisher != nil {
		s.publisher = publisher
	}
}

// CreateLoanInput contains input for creating a loan. Optional terms fall
// back to the system defaults.
type CreateLoanInput struct {
	Amount        decimal.Decimal
	Tenure        int32
	Periodicity   domain.Periodicity
	Interest      *decimal.Decimal
	ProcessingFee *decimal.Decimal
	Borrower      string
	DateCreated   *time.Time
}

// CreateLoan records a loan's terms and one share for the borrower. The
// schedule is not materialized until approval.
func (s *LedgerService) CreateLoan(ctx context.Context, input CreateLoanInput) (*domain.Loan, error) {
	if input.Borrower == "" {
		return nil, domain.LoanDetailsError{Cause: errors.New("borrower is required")}
	}

	periodicity := input.Periodicity
	if periodicity == "" {
		periodicity = s.defaults.Periodicity
	}
	interest := s.defaults.Interest
	if input.Interest != nil {
		interest = *input.Interest
	}
	processingFee := s.defaults.ProcessingFee
	if input.ProcessingFee != nil {
		processingFee = *input.ProcessingFee
	}
	dateCreated := dateOnly(time.Now().UTC())
	if input.DateCreated != nil {
		dateCreated = dateOnly(*input.DateCreated)
	}

	loan := &domain.Loan{
		Amount:        domain.RoundMoney(input.Amount),
		Tenure:        input.Tenure,
		Periodicity:   periodicity,
		Status:        domain.LoanStatusPending,
		Interest:      domain.RoundMoney(interest),
		ProcessingFee: domain.RoundMoney(processingFee),
		DateCreated:   dateCreated,
	}
	if err := loan.Validate(); err != nil {
		return nil, domain.LoanDetailsError{Cause: err}
	}

	err := s.txm.WithinTx(ctx, func(tx domain.Tx) error {
		created, err := s.loans.Create(ctx, tx, loan)
		if err != nil {
			return err
		}
		loan = created

		_, err = s.shares.Create(ctx, tx, &domain.LoanShare{
			LoanID:   loan.ID,
			Borrower: input.Borrower,
			Share:    loan.Amount,
			Status:   domain.LoanStatusPending,
		})
		return err
	})
	if err != nil {
		return nil, domain.LoanDetailsError{Cause: err}
	}
	return loan, nil
}

// ApproveLoan transitions a PENDING loan and its shares to APPROVED and
// materializes each share's installment schedule anchored at approvalDate.
func (s *LedgerService) ApproveLoan(ctx context.Context, loanID int64, approvalDate time.Time) error {
	approvalDate = dateOnly(approvalDate)

	err := s.txm.WithinTx(ctx, func(tx domain.Tx) error {
		loan, err := s.loans.GetByID(ctx, tx, loanID)
		if err != nil {
			if errors.Is(err, domain.ErrLoanNotFound) {
				return domain.LoanIDError{Op: "approve loan", ID: loanID}
			}
			return err
		}
		if loan.Status != domain.LoanStatusPending {
			return domain.ErrInvalidLoanApproval
		}

		loan.Status = domain.LoanStatusApproved
		loan.ApprovalDate = &approvalDate
		if err := s.loans.Update(ctx, tx, loan); err != nil {
			return err
		}

		shares, err := s.shares.ListByLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		for _, share := range shares {
			share.Status = domain.LoanStatusApproved
			if err := s.shares.Update(ctx, tx, share); err != nil {
				return err
			}

			entries, err := CalculateSchedule(share.Share, loan.Tenure, loan.Interest, loan.ProcessingFee, loan.Periodicity, approvalDate)
			if err != nil {
				return err
			}
			installments := make([]*domain.Installment, len(entries))
			for i, entry := range entries {
				installments[i] = &domain.Installment{
					LoanShareID:     share.ID,
					Order:           entry.Order,
					DueDate:         entry.DueDate,
					SuggestedAmount: entry.SuggestedAmount,
					Status:          domain.InstallmentUnpaid,
				}
			}
			if err := s.installments.CreateBatch(ctx, tx, installments); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(loanID, ws.LoanApproved(map[string]interface{}{
		"loanId":       loanID,
		"approvalDate": approvalDate.Format("2006-01-02"),
	}))
	return nil
}

// AddPayment records a repayment and allocates it across the share's
// installments: principal in chronological order first, then outstanding
// penalties, then any residual as overflow credit on the last installment.
// The whole allocation is one transaction.
func (s *LedgerService) AddPayment(ctx context.Context, shareID int64, amount decimal.Decimal, paymentRef string, paymentDate time.Time) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.PaymentError{Cause: domain.ErrPaymentAmountInvalid}
	}
	if paymentRef == "" {
		return domain.PaymentError{Cause: domain.ErrPaymentRefRequired}
	}
	paymentDate = dateOnly(paymentDate)

	var (
		loan      *domain.Loan
		shareDone bool
		loanDone  bool
	)

	err := s.txm.WithinTx(ctx, func(tx domain.Tx) error {
		share, err := s.shares.GetByID(ctx, tx, shareID)
		if err != nil {
			if errors.Is(err, domain.ErrLoanShareNotFound) {
				return domain.LoanIDError{Op: "add payment", ID: shareID}
			}
			return err
		}
		loan, err = s.loans.GetByID(ctx, tx, share.LoanID)
		if err != nil {
			return err
		}
		if !loan.IsActive() {
			return domain.ErrInactiveLoan
		}

		// 1. Record the repayment for the full rounded amount before
		// allocating anything.
		funds := domain.RoundMoney(amount)
		repayment := &domain.LoanRepayment{
			ID:          uuid.New(),
			LoanShareID: shareID,
			PaymentRef:  paymentRef,
			PaymentDate: paymentDate,
			Amount:      funds,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.repayments.Create(ctx, tx, repayment); err != nil {
			return err
		}

		installments, err := s.installments.ListByShare(ctx, tx, shareID)
		if err != nil {
			return err
		}

		// 2. Principal waterfall, ascending order.
		for _, installment := range installments {
			if !funds.GreaterThan(decimal.Zero) {
				break
			}
			if installment.Status.PrincipalSettled() {
				continue
			}
			funds, err = s.fulfillPrincipal(ctx, tx, installment, repayment, funds, paymentDate)
			if err != nil {
				return err
			}
		}

		// 3. Penalty waterfall over installments whose principal is settled
		// but which still owe penalty.
		if funds.GreaterThan(decimal.Zero) {
			for _, installment := range installments {
				if !funds.GreaterThan(decimal.Zero) {
					break
				}
				if installment.Status != domain.InstallmentPaidWithoutPenalty {
					continue
				}
				funds, err = s.fulfillPenalty(ctx, tx, installment, repayment, funds, paymentDate)
				if err != nil {
					return err
				}
			}
		}

		// 4. Overflow: any residual is extra money, credited to the last
		// installment as a negative remaining balance.
		if funds.GreaterThan(decimal.Zero) && len(installments) > 0 {
			last := installments[len(installments)-1]
			if err := s.applyOverflow(ctx, tx, last, repayment, funds, paymentDate); err != nil {
				return err
			}
		}

		// 5. Cascade completion to the share and the loan.
		if share.Status != domain.LoanStatusCompleted && shareCompleted(installments) {
			share.Status = domain.LoanStatusCompleted
			if err := s.shares.Update(ctx, tx, share); err != nil {
				return err
			}
			shareDone = true

			allShares, err := s.shares.ListByLoan(ctx, tx, loan.ID)
			if err != nil {
				return err
			}
			if loanCompleted(allShares) {
				closing := paymentDate
				loan.Status = domain.LoanStatusCompleted
				loan.ClosingDate = &closing
				if err := s.loans.Update(ctx, tx, loan); err != nil {
					return err
				}
				loanDone = true
			}
		}
		return nil
	})
	if err != nil {
		var idErr domain.LoanIDError
		var payErr domain.PaymentError
		if errors.Is(err, domain.ErrInactiveLoan) || errors.As(err, &idErr) || errors.As(err, &payErr) {
			return err
		}
		return domain.PaymentError{Cause: err}
	}

	s.publisher.Publish(loan.ID, ws.RepaymentRecorded(map[string]interface{}{
		"loanId":      loan.ID,
		"loanShareId": shareID,
		"paymentRef":  paymentRef,
		"amount":      domain.RoundMoney(amount).String(),
		"paymentDate": paymentDate.Format("2006-01-02"),
	}))
	if shareDone {
		s.publisher.Publish(loan.ID, ws.ShareCompleted(map[string]interface{}{
			"loanId":      loan.ID,
			"loanShareId": shareID,
		}))
	}
	if loanDone {
		s.publisher.Publish(loan.ID, ws.LoanCompleted(map[string]interface{}{
			"loanId": loan.ID,
		}))
	}
	return nil
}

// fulfillPrincipal locks one installment, applies up to the outstanding
// principal from funds, and recomputes the status. The lock is held across
// the balance read and the ledger-line write.
func (s *LedgerService) fulfillPrincipal(ctx context.Context, tx domain.Tx, installment *domain.Installment, repayment *domain.LoanRepayment, funds decimal.Decimal, paymentDate time.Time) (decimal.Decimal, error) {
	locked, err := s.installments.GetForUpdate(ctx, tx, installment.ID)
	if err != nil {
		return funds, err
	}
	details, err := s.repayments.ListDetailsByInstallment(ctx, tx, locked.ID)
	if err != nil {
		return funds, err
	}

	remaining := locked.AmountRemaining(details)
	if remaining.GreaterThan(decimal.Zero) {
		applied := decimal.Min(remaining, funds)
		detail, err := s.repayments.GetOrCreateDetail(ctx, tx, locked.ID, repayment.ID)
		if err != nil {
			return funds, err
		}
		detail.Amount = detail.Amount.Add(applied)
		if err := s.repayments.UpdateDetail(ctx, tx, detail); err != nil {
			return funds, err
		}
		funds = funds.Sub(applied)
	}

	if err := s.refreshInstallmentStatus(ctx, tx, locked, &paymentDate); err != nil {
		return funds, err
	}
	installment.Status = locked.Status
	return funds, nil
}

// fulfillPenalty locks one installment and applies up to the outstanding
// penalty from funds.
func (s *LedgerService) fulfillPenalty(ctx context.Context, tx domain.Tx, installment *domain.Installment, repayment *domain.LoanRepayment, funds decimal.Decimal, paymentDate time.Time) (decimal.Decimal, error) {
	locked, err := s.installments.GetForUpdate(ctx, tx, installment.ID)
	if err != nil {
		return funds, err
	}
	details, err := s.repayments.ListDetailsByInstallment(ctx, tx, locked.ID)
	if err != nil {
		return funds, err
	}
	penaltyRows, err := s.penalties.ListByInstallment(ctx, tx, locked.ID)
	if err != nil {
		return funds, err
	}

	penaltyRemaining := locked.PenaltyRemaining(domain.LatestPenalty(penaltyRows), details)
	if penaltyRemaining.GreaterThan(decimal.Zero) {
		applied := decimal.Min(penaltyRemaining, funds)
		detail, err := s.repayments.GetOrCreateDetail(ctx, tx, locked.ID, repayment.ID)
		if err != nil {
			return funds, err
		}
		detail.PenaltyAmount = detail.PenaltyAmount.Add(applied)
		if err := s.repayments.UpdateDetail(ctx, tx, detail); err != nil {
			return funds, err
		}
		funds = funds.Sub(applied)
	}

	if err := s.refreshInstallmentStatus(ctx, tx, locked, &paymentDate); err != nil {
		return funds, err
	}
	installment.Status = locked.Status
	return funds, nil
}

// applyOverflow credits the residual to the installment's principal line,
// deliberately driving its remaining balance negative.
func (s *LedgerService) applyOverflow(ctx context.Context, tx domain.Tx, installment *domain.Installment, repayment *domain.LoanRepayment, residual decimal.Decimal, paymentDate time.Time) error {
	locked, err := s.installments.GetForUpdate(ctx, tx, installment.ID)
	if err != nil {
		return err
	}
	detail, err := s.repayments.GetOrCreateDetail(ctx, tx, locked.ID, repayment.ID)
	if err != nil {
		return err
	}
	detail.Amount = detail.Amount.Add(residual)
	if err := s.repayments.UpdateDetail(ctx, tx, detail); err != nil {
		return err
	}
	if err := s.refreshInstallmentStatus(ctx, tx, locked, &paymentDate); err != nil {
		return err
	}
	installment.Status = locked.Status
	return nil
}

// refreshInstallmentStatus recomputes an installment's status from its
// current balances. With a known payment date it also triggers retroactive
// penalty correction, re-deriving the status once if history changed.
func (s *LedgerService) refreshInstallmentStatus(ctx context.Context, tx domain.Tx, installment *domain.Installment, paymentDate *time.Time) error {
	if err := s.recomputeStatus(ctx, tx, installment); err != nil {
		return err
	}
	if paymentDate == nil {
		return nil
	}

	changed, err := s.penaltyEngine.CorrectAfter(ctx, tx, installment, *paymentDate)
	if err != nil {
		return err
	}
	if changed {
		return s.recomputeStatus(ctx, tx, installment)
	}
	return nil
}

func (s *LedgerService) recomputeStatus(ctx context.Context, tx domain.Tx, installment *domain.Installment) error {
	details, err := s.repayments.ListDetailsByInstallment(ctx, tx, installment.ID)
	if err != nil {
		return err
	}
	penaltyRows, err := s.penalties.ListByInstallment(ctx, tx, installment.ID)
	if err != nil {
		return err
	}

	remaining := installment.AmountRemaining(details)
	penaltyRemaining := installment.PenaltyRemaining(domain.LatestPenalty(penaltyRows), details)
	status := InstallmentStatusFor(installment.SuggestedAmount, remaining, penaltyRemaining)
	if status != installment.Status {
		if err := s.installments.UpdateStatus(ctx, tx, installment.ID, status); err != nil {
			return err
		}
		installment.Status = status
	}
	return nil
}

// BorrowerSchedule is one borrower's ordered schedule for a loan.
type BorrowerSchedule struct {
	Borrower string          `json:"borrower"`
	Entries  []ScheduleEntry `json:"entries"`
}

// GetSchedule returns per-borrower schedules for a loan. For loans not yet
// approved the schedule is a projection computed from the terms, anchored at
// today, and nothing is persisted.
func (s *LedgerService) GetSchedule(ctx context.Context, loanID int64) ([]BorrowerSchedule, error) {
	loan, err := s.loans.GetByID(ctx, nil, loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return nil, domain.LoanIDError{Op: "get schedule", ID: loanID}
		}
		return nil, err
	}

	shares, err := s.shares.ListByLoan(ctx, nil, loanID)
	if err != nil {
		return nil, err
	}

	schedules := make([]BorrowerSchedule, 0, len(shares))
	for _, share := range shares {
		installments, err := s.installments.ListByShare(ctx, nil, share.ID)
		if err != nil {
			return nil, err
		}

		var entries []ScheduleEntry
		if len(installments) == 0 {
			entries, err = CalculateSchedule(share.Share, loan.Tenure, loan.Interest, loan.ProcessingFee, loan.Periodicity, dateOnly(time.Now().UTC()))
			if err != nil {
				return nil, err
			}
		} else {
			entries = make([]ScheduleEntry, 0, len(installments))
			for _, installment := range installments {
				entry, err := s.projectInstallment(ctx, installment)
				if err != nil {
					return nil, err
				}
				entries = append(entries, entry)
			}
		}

		schedules = append(schedules, BorrowerSchedule{Borrower: share.Borrower, Entries: entries})
	}
	return schedules, nil
}

func (s *LedgerService) projectInstallment(ctx context.Context, installment *domain.Installment) (ScheduleEntry, error) {
	details, err := s.repayments.ListDetailsByInstallment(ctx, nil, installment.ID)
	if err != nil {
		return ScheduleEntry{}, err
	}
	penaltyRows, err := s.penalties.ListByInstallment(ctx, nil, installment.ID)
	if err != nil {
		return ScheduleEntry{}, err
	}

	accrued := domain.LatestPenalty(penaltyRows)
	remaining := installment.AmountRemaining(details)
	return ScheduleEntry{
		Order:            installment.Order,
		DueDate:          installment.DueDate,
		SuggestedAmount:  installment.SuggestedAmount,
		Status:           string(installment.Status),
		PaidAmount:       installment.SuggestedAmount.Sub(remaining),
		Penalty:          accrued,
		PenaltyRemaining: installment.PenaltyRemaining(accrued, details),
	}, nil
}

// ListLoans returns a borrower's loans grouped into status buckets: active
// (approved/hold) first, then pending, closed, rejected.
func (s *LedgerService) ListLoans(ctx context.Context, borrower string) ([]*domain.Loan, error) {
	loans, err := s.loans.ListByBorrower(ctx, borrower)
	if err != nil {
		return nil, err
	}

	buckets := [][]*domain.Loan{nil, nil, nil, nil}
	for _, loan := range loans {
		switch {
		case loan.Status == domain.LoanStatusApproved || loan.Status == domain.LoanStatusHold:
			buckets[0] = append(buckets[0], loan)
		case loan.Status == domain.LoanStatusPending:
			buckets[1] = append(buckets[1], loan)
		case loan.Status.IsClosed():
			buckets[2] = append(buckets[2], loan)
		default:
			buckets[3] = append(buckets[3], loan)
		}
	}

	ordered := make([]*domain.Loan, 0, len(loans))
	for _, bucket := range buckets {
		ordered = append(ordered, bucket...)
	}
	return ordered, nil
}

// AmountPending returns the outstanding principal per borrower for a loan.
func (s *LedgerService) AmountPending(ctx context.Context, loanID int64) (map[string]decimal.Decimal, error) {
	shares, err := s.shares.ListByLoan(ctx, nil, loanID)
	if err != nil {
		return nil, err
	}

	pending := make(map[string]decimal.Decimal, len(shares))
	for _, share := range shares {
		installments, err := s.installments.ListByShare(ctx, nil, share.ID)
		if err != nil {
			return nil, err
		}
		total := decimal.Zero
		for _, installment := range installments {
			details, err := s.repayments.ListDetailsByInstallment(ctx, nil, installment.ID)
			if err != nil {
				return nil, err
			}
			total = total.Add(installment.AmountRemaining(details))
		}
		pending[share.Borrower] = total
	}
	return pending, nil
}

// RunDailyAccrual runs the daily penalty sweep over all open installments and
// broadcasts an accrual event to each loan that gained penalty rows.
func (s *LedgerService) RunDailyAccrual(ctx context.Context, asOf time.Time) (processed, failed int) {
	result := s.penaltyEngine.RunDailySweep(ctx, asOf)

	notified := make(map[int64]bool)
	for _, shareID := range result.AccruedShareIDs {
		share, err := s.shares.GetByID(ctx, nil, shareID)
		if err != nil {
			log.Error().Err(err).Int64("loan_share_id", shareID).Msg("accrual event: loading share")
			continue
		}
		if notified[share.LoanID] {
			continue
		}
		notified[share.LoanID] = true
		s.publisher.Publish(share.LoanID, ws.PenaltyAccrued(map[string]interface{}{
			"loanId": share.LoanID,
			"asOf":   asOf.Format("2006-01-02"),
		}))
	}

	return result.Processed, result.Failed
}
