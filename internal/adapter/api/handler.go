package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/simaogato/settleflow/internal/domain"
	"github.com/simaogato/settleflow/internal/money"
	"github.com/simaogato/settleflow/internal/usecase/intake"
)

// TransferSubmitter is the core-facing contract the HTTP layer consumes.
// Implemented by intake.Service.
type TransferSubmitter interface {
	Submit(ctx context.Context, input intake.SubmitInput) (*intake.Result, error)
}

// Handler exposes the transfer intake endpoints.
type Handler struct {
	intake TransferSubmitter
	logger *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(submitter TransferSubmitter, logger *slog.Logger) *Handler {
	return &Handler{
		intake: submitter,
		logger: logger,
	}
}

// amountField accepts either a JSON string or a JSON number, preserving the
// literal text so the decimal conversion stays exact.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*a = amountField(raw)
		return nil
	}
	*a = amountField(strings.TrimSpace(string(data)))
	return nil
}

type transferRequest struct {
	AccountID string      `json:"account_id"`
	Kind      string      `json:"kind"`
	Amount    amountField `json:"amount"`
}

type transferResponse struct {
	EventID int64  `json:"event_id"`
	TaskID  string `json:"task_id"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Transfer accepts a transfer request and records it as a pending event.
// Nothing about the settlement outcome is visible here: callers discover the
// final status later, from the event record.
func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "invalid request body")
		return
	}

	if req.AccountID == "" {
		validationError(c, "account_id is required")
		return
	}

	operation, err := domain.ParseOperation(req.Kind)
	if err != nil {
		validationError(c, "kind must be withdraw or deposit")
		return
	}

	// Malformed amounts degrade to zero, which the positivity check rejects.
	amount := money.ParseOr(string(req.Amount), decimal.Zero)
	if amount.LessThanOrEqual(decimal.Zero) {
		validationError(c, "amount must be a positive decimal")
		return
	}

	h.submit(c, intake.SubmitInput{
		AccountID: req.AccountID,
		Operation: operation,
		Amount:    amount,
	})
}

// TransferTest submits a transfer with randomized values. Account ids stay
// in a small range so load tests keep hitting existing accounts and exercise
// the provisioning race and lock paths.
func (h *Handler) TransferTest(c *gin.Context) {
	operation := domain.OperationWithdraw
	if rand.Float64() > 0.5 {
		operation = domain.OperationDeposit
	}

	h.submit(c, intake.SubmitInput{
		AccountID: strconv.Itoa(1 + rand.Intn(30)),
		Operation: operation,
		Amount:    decimal.NewFromFloat(1 + rand.Float64()*25).Truncate(money.SeedPlaces),
	})
}

func (h *Handler) submit(c *gin.Context, input intake.SubmitInput) {
	result, err := h.intake.Submit(c.Request.Context(), input)
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidOperation):
		validationError(c, err.Error())
	case err != nil:
		h.logger.Error("transfer submission failed", "account_id", input.AccountID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	default:
		c.JSON(http.StatusOK, transferResponse{EventID: result.EventID, TaskID: result.TaskID})
	}
}

func validationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "VALIDATION_ERROR",
		"message": message,
	})
}
