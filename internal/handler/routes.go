package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, loanHandler *LoanHandler, wsHandler *WebSocketHandler) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// API version 1
	api := e.Group("/api/v1")

	// Loan routes
	loans := api.Group("/loans")
	loans.POST("", loanHandler.CreateLoan)
	loans.GET("", loanHandler.GetLoans)
	loans.GET("/:id/schedule", loanHandler.GetSchedule)
	loans.GET("/:id/pending", loanHandler.GetAmountPending)
	loans.POST("/:id/approve", loanHandler.ApproveLoan)
	loans.GET("/:id/events", wsHandler.HandleWS)

	// Loan share routes
	shares := api.Group("/loan-shares")
	shares.POST("/:id/payments", loanHandler.AddPayment)

	// Penalty accrual sweep
	api.POST("/accruals/run", loanHandler.RunAccrual)
}
