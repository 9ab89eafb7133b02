package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/emibook/emibook-backend/internal/service"
	"github.com/emibook/emibook-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func newTestLedger() (*service.LedgerService, *testutil.MockLoanShareRepository) {
	txm := testutil.NewMockTxManager()
	shares := testutil.NewMockLoanShareRepository()
	loans := testutil.NewMockLoanRepository(shares)
	installments := testutil.NewMockInstallmentRepository(shares)
	repayments := testutil.NewMockRepaymentRepository()
	penalties := testutil.NewMockPenaltyRepository()

	engine := service.NewPenaltyEngine(txm, installments, repayments, penalties, decimal.RequireFromString("0.01"))
	ledger := service.NewLedgerService(txm, loans, shares, installments, repayments, penalties, engine, service.LedgerDefaults{
		Periodicity:   domain.PeriodicityMonthly,
		Interest:      decimal.RequireFromString("0.01"),
		ProcessingFee: decimal.Zero,
	})
	return ledger, shares
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateLoan_Success(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	c, rec := postJSON(e, "/api/v1/loans",
		`{"amount":"1000","tenure":10,"borrower":"alice"}`)

	if err := handler.CreateLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rec.Code)
	}

	var response LoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Status != string(domain.LoanStatusPending) {
		t.Errorf("Expected status PENDING, got %s", response.Status)
	}
	if response.Amount != "1000" {
		t.Errorf("Expected amount '1000', got %s", response.Amount)
	}
	if response.Periodicity != string(domain.PeriodicityMonthly) {
		t.Errorf("Expected default monthly periodicity, got %s", response.Periodicity)
	}
}

func TestCreateLoan_InvalidAmount(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	c, rec := postJSON(e, "/api/v1/loans",
		`{"amount":"not-a-number","tenure":10,"borrower":"alice"}`)

	if err := handler.CreateLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCreateLoan_ValidationFailure(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	c, rec := postJSON(e, "/api/v1/loans",
		`{"amount":"1000","tenure":0,"borrower":"alice"}`)

	if err := handler.CreateLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if problem.Type != ErrorTypeValidation {
		t.Errorf("Expected validation problem type, got %s", problem.Type)
	}
}

func createLoanForTest(t *testing.T, ledger *service.LedgerService) *domain.Loan {
	t.Helper()
	loan, err := ledger.CreateLoan(httptest.NewRequest(http.MethodGet, "/", nil).Context(), service.CreateLoanInput{
		Amount:   decimal.NewFromInt(1000),
		Tenure:   4,
		Borrower: "alice",
	})
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	return loan
}

func TestApproveLoan_Success(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)
	loan := createLoanForTest(t, ledger)

	c, rec := postJSON(e, "/api/v1/loans/"+strconv.FormatInt(loan.ID, 10)+"/approve",
		`{"approvalDate":"2024-01-15"}`)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(loan.ID, 10))

	if err := handler.ApproveLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
}

func TestApproveLoan_NotFound(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	c, rec := postJSON(e, "/api/v1/loans/999/approve", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("999")

	if err := handler.ApproveLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestApproveLoan_AlreadyApproved(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)
	loan := createLoanForTest(t, ledger)

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if err := ledger.ApproveLoan(ctx, loan.ID, time.Now().UTC()); err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}

	c, rec := postJSON(e, "/api/v1/loans/1/approve", `{}`)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(loan.ID, 10))

	if err := handler.ApproveLoan(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
}

func TestAddPayment_Success(t *testing.T) {
	e := echo.New()
	ledger, shares := newTestLedger()
	handler := NewLoanHandler(ledger)
	loan := createLoanForTest(t, ledger)

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if err := ledger.ApproveLoan(ctx, loan.ID, time.Now().UTC()); err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}
	loanShares, err := shares.ListByLoan(ctx, nil, loan.ID)
	if err != nil || len(loanShares) != 1 {
		t.Fatalf("Expected one share, got %d (err %v)", len(loanShares), err)
	}
	shareID := strconv.FormatInt(loanShares[0].ID, 10)

	c, rec := postJSON(e, "/api/v1/loan-shares/"+shareID+"/payments",
		`{"amount":"250","paymentRef":"pay-1"}`)
	c.SetParamNames("id")
	c.SetParamValues(shareID)

	if err := handler.AddPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}

	// Same reference again conflicts
	c, rec = postJSON(e, "/api/v1/loan-shares/"+shareID+"/payments",
		`{"amount":"250","paymentRef":"pay-1"}`)
	c.SetParamNames("id")
	c.SetParamValues(shareID)

	if err := handler.AddPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
}

func TestAddPayment_InvalidAmount(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	c, rec := postJSON(e, "/api/v1/loan-shares/1/payments",
		`{"amount":"-5","paymentRef":"pay-1"}`)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := handler.AddPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetSchedule_Success(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)
	loan := createLoanForTest(t, ledger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/1/schedule", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(loan.ID, 10))

	if err := handler.GetSchedule(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var schedules []service.BorrowerSchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &schedules); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(schedules) != 1 || len(schedules[0].Entries) != 4 {
		t.Fatalf("Expected 1 schedule with 4 entries, got %+v", schedules)
	}
	if schedules[0].Entries[0].Status != service.ScheduleEntryNotStarted {
		t.Errorf("Expected NOT_STARTED projection, got %s", schedules[0].Entries[0].Status)
	}
}

func TestGetSchedule_NotFound(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/999/schedule", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("999")

	if err := handler.GetSchedule(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetLoans_RequiresBorrower(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.GetLoans(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetLoans_Success(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)
	createLoanForTest(t, ledger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans?borrower=alice", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.GetLoans(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response []LoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response) != 1 {
		t.Errorf("Expected 1 loan, got %d", len(response))
	}
}

func TestRunAccrual_Success(t *testing.T) {
	e := echo.New()
	ledger, _ := newTestLedger()
	handler := NewLoanHandler(ledger)

	c, rec := postJSON(e, "/api/v1/accruals/run", `{"asOf":"2024-06-01"}`)

	if err := handler.RunAccrual(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response RunAccrualResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Processed != 0 || response.Failed != 0 {
		t.Errorf("Expected empty sweep, got %+v", response)
	}
}
