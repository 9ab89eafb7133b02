package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/emibook/emibook-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// LoanHandler handles ledger HTTP requests
type LoanHandler struct {
	ledger *service.LedgerService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(ledger *service.LedgerService) *LoanHandler {
	return &LoanHandler{ledger: ledger}
}

// CreateLoanRequest represents the create loan request body
type CreateLoanRequest struct {
	Amount        string  `json:"amount"`
	Tenure        int32   `json:"tenure"`
	Periodicity   string  `json:"periodicity,omitempty"`
	Interest      *string `json:"interest,omitempty"`
	ProcessingFee *string `json:"processingFee,omitempty"`
	Borrower      string  `json:"borrower"`
	DateCreated   *string `json:"dateCreated,omitempty"`
}

// ApproveLoanRequest represents the approve loan request body
type ApproveLoanRequest struct {
	ApprovalDate string `json:"approvalDate,omitempty"`
}

// AddPaymentRequest represents the add payment request body
type AddPaymentRequest struct {
	Amount      string `json:"amount"`
	PaymentRef  string `json:"paymentRef"`
	PaymentDate string `json:"paymentDate,omitempty"`
}

// RunAccrualRequest represents the accrual sweep request body
type RunAccrualRequest struct {
	AsOf string `json:"asOf,omitempty"`
}

// RunAccrualResponse represents the accrual sweep result
type RunAccrualResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID            int64   `json:"id"`
	Amount        string  `json:"amount"`
	Tenure        int32   `json:"tenure"`
	Periodicity   string  `json:"periodicity"`
	Status        string  `json:"status"`
	ApprovalDate  *string `json:"approvalDate,omitempty"`
	ClosingDate   *string `json:"closingDate,omitempty"`
	Interest      string  `json:"interest"`
	ProcessingFee string  `json:"processingFee"`
	DateCreated   string  `json:"dateCreated"`
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	input := service.CreateLoanInput{
		Amount:      amount,
		Tenure:      req.Tenure,
		Periodicity: domain.Periodicity(req.Periodicity),
		Borrower:    req.Borrower,
	}

	if req.Interest != nil && *req.Interest != "" {
		interest, err := decimal.NewFromString(*req.Interest)
		if err != nil {
			return NewValidationError(c, "Invalid interest", []ValidationError{
				{Field: "interest", Message: "Must be a valid decimal number"},
			})
		}
		input.Interest = &interest
	}
	if req.ProcessingFee != nil && *req.ProcessingFee != "" {
		fee, err := decimal.NewFromString(*req.ProcessingFee)
		if err != nil {
			return NewValidationError(c, "Invalid processing fee", []ValidationError{
				{Field: "processingFee", Message: "Must be a valid decimal number"},
			})
		}
		input.ProcessingFee = &fee
	}
	if req.DateCreated != nil && *req.DateCreated != "" {
		dateCreated, err := time.Parse(dateLayout, *req.DateCreated)
		if err != nil {
			return NewValidationError(c, "Invalid creation date", []ValidationError{
				{Field: "dateCreated", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		input.DateCreated = &dateCreated
	}

	loan, err := h.ledger.CreateLoan(c.Request().Context(), input)
	if err != nil {
		var detailsErr domain.LoanDetailsError
		if errors.As(err, &detailsErr) {
			return NewValidationError(c, detailsErr.Error(), nil)
		}
		log.Error().Err(err).Str("borrower", req.Borrower).Msg("Failed to create loan")
		return NewInternalError(c, "Failed to create loan")
	}

	log.Info().Int64("loan_id", loan.ID).Str("borrower", req.Borrower).Msg("Loan created")

	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// GetLoans handles GET /api/v1/loans?borrower=
func (h *LoanHandler) GetLoans(c echo.Context) error {
	borrower := c.QueryParam("borrower")
	if borrower == "" {
		return NewValidationError(c, "Missing borrower parameter", []ValidationError{
			{Field: "borrower", Message: "Query parameter is required"},
		})
	}

	loans, err := h.ledger.ListLoans(c.Request().Context(), borrower)
	if err != nil {
		log.Error().Err(err).Str("borrower", borrower).Msg("Failed to list loans")
		return NewInternalError(c, "Failed to list loans")
	}

	response := make([]LoanResponse, len(loans))
	for i, loan := range loans {
		response[i] = toLoanResponse(loan)
	}
	return c.JSON(http.StatusOK, response)
}

// GetSchedule handles GET /api/v1/loans/:id/schedule
func (h *LoanHandler) GetSchedule(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	schedules, err := h.ledger.GetSchedule(c.Request().Context(), id)
	if err != nil {
		var idErr domain.LoanIDError
		if errors.As(err, &idErr) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int64("loan_id", id).Msg("Failed to get schedule")
		return NewInternalError(c, "Failed to get schedule")
	}
	return c.JSON(http.StatusOK, schedules)
}

// GetAmountPending handles GET /api/v1/loans/:id/pending
func (h *LoanHandler) GetAmountPending(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	pending, err := h.ledger.AmountPending(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("loan_id", id).Msg("Failed to get pending amounts")
		return NewInternalError(c, "Failed to get pending amounts")
	}

	response := make(map[string]string, len(pending))
	for borrower, amount := range pending {
		response[borrower] = amount.String()
	}
	return c.JSON(http.StatusOK, response)
}

// ApproveLoan handles POST /api/v1/loans/:id/approve
func (h *LoanHandler) ApproveLoan(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req ApproveLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	approvalDate := time.Now().UTC()
	if req.ApprovalDate != "" {
		approvalDate, err = time.Parse(dateLayout, req.ApprovalDate)
		if err != nil {
			return NewValidationError(c, "Invalid approval date", []ValidationError{
				{Field: "approvalDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
	}

	if err := h.ledger.ApproveLoan(c.Request().Context(), id, approvalDate); err != nil {
		var idErr domain.LoanIDError
		if errors.As(err, &idErr) {
			return NewNotFoundError(c, "Loan not found")
		}
		if errors.Is(err, domain.ErrInvalidLoanApproval) {
			return NewConflictError(c, "Loan is not pending approval")
		}
		log.Error().Err(err).Int64("loan_id", id).Msg("Failed to approve loan")
		return NewInternalError(c, "Failed to approve loan")
	}

	log.Info().Int64("loan_id", id).Msg("Loan approved")
	return c.NoContent(http.StatusNoContent)
}

// AddPayment handles POST /api/v1/loan-shares/:id/payments
func (h *LoanHandler) AddPayment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewValidationError(c, "Invalid loan share ID", nil)
	}

	var req AddPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	paymentDate := time.Now().UTC()
	if req.PaymentDate != "" {
		paymentDate, err = time.Parse(dateLayout, req.PaymentDate)
		if err != nil {
			return NewValidationError(c, "Invalid payment date", []ValidationError{
				{Field: "paymentDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
	}

	err = h.ledger.AddPayment(c.Request().Context(), id, amount, req.PaymentRef, paymentDate)
	if err != nil {
		var idErr domain.LoanIDError
		if errors.As(err, &idErr) {
			return NewNotFoundError(c, "Loan share not found")
		}
		if errors.Is(err, domain.ErrInactiveLoan) {
			return NewConflictError(c, "Loan is not active")
		}
		if errors.Is(err, domain.ErrDuplicatePayment) {
			return NewConflictError(c, "Payment reference already recorded")
		}
		if errors.Is(err, domain.ErrPaymentAmountInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "amount", Message: "Amount must be positive"},
			})
		}
		if errors.Is(err, domain.ErrPaymentRefRequired) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "paymentRef", Message: "Payment reference is required"},
			})
		}
		log.Error().Err(err).Int64("loan_share_id", id).Str("payment_ref", req.PaymentRef).Msg("Failed to add payment")
		return NewInternalError(c, "Failed to add payment")
	}

	log.Info().
		Int64("loan_share_id", id).
		Str("payment_ref", req.PaymentRef).
		Str("amount", amount.String()).
		Msg("Payment recorded")

	return c.NoContent(http.StatusNoContent)
}

// RunAccrual handles POST /api/v1/accruals/run
func (h *LoanHandler) RunAccrual(c echo.Context) error {
	var req RunAccrualRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := time.Parse(dateLayout, req.AsOf)
		if err != nil {
			return NewValidationError(c, "Invalid as-of date", []ValidationError{
				{Field: "asOf", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		asOf = parsed
	}

	processed, failed := h.ledger.RunDailyAccrual(c.Request().Context(), asOf)
	return c.JSON(http.StatusOK, RunAccrualResponse{Processed: processed, Failed: failed})
}

func toLoanResponse(loan *domain.Loan) LoanResponse {
	resp := LoanResponse{
		ID:            loan.ID,
		Amount:        loan.Amount.String(),
		Tenure:        loan.Tenure,
		Periodicity:   string(loan.Periodicity),
		Status:        string(loan.Status),
		Interest:      loan.Interest.String(),
		ProcessingFee: loan.ProcessingFee.String(),
		DateCreated:   loan.DateCreated.Format(dateLayout),
	}
	if loan.ApprovalDate != nil {
		approvalDate := loan.ApprovalDate.Format(dateLayout)
		resp.ApprovalDate = &approvalDate
	}
	if loan.ClosingDate != nil {
		closingDate := loan.ClosingDate.Format(dateLayout)
		resp.ClosingDate = &closingDate
	}
	return resp
}
