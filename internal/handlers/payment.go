package handlers

import (
	"context"
	"fmt"
	"time"

	"tappay/internal/chain"
	"tappay/internal/models"
	"tappay/internal/repositories"
	"tappay/internal/services/pipeline"
	"tappay/internal/services/validation"
	"tappay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// PaymentHandler exposes the tap validation and settlement endpoints.
type PaymentHandler struct {
	validator    validation.Service
	pipeline     pipeline.Service
	cards        repositories.CardRepository
	users        repositories.UserRepository
	merchants    repositories.MerchantRepository
	transactions repositories.TransactionRepository
	chainClient  chain.Client
	waitTimeout  time.Duration
}

// NewPaymentHandler creates the payment handler.
func NewPaymentHandler(
	validator validation.Service,
	pipelineSvc pipeline.Service,
	cards repositories.CardRepository,
	users repositories.UserRepository,
	merchants repositories.MerchantRepository,
	transactions repositories.TransactionRepository,
	chainClient chain.Client,
	waitTimeout time.Duration,
) *PaymentHandler {
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &PaymentHandler{
		validator:    validator,
		pipeline:     pipelineSvc,
		cards:        cards,
		users:        users,
		merchants:    merchants,
		transactions: transactions,
		chainClient:  chainClient,
		waitTimeout:  waitTimeout,
	}
}

// Validate answers the NFC tap pre-check.
func (h *PaymentHandler) Validate(c *fiber.Ctx) error {
	var input struct {
		CardUUID   string  `json:"cardUuid"`
		Amount     float64 `json:"amount"`
		MerchantID uint    `json:"merchantId"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.CardUUID == "" || input.Amount <= 0 || input.MerchantID == 0 {
		return response.BadRequest(c, "cardUuid, amount and merchantId are required")
	}

	result, err := h.validator.Validate(c.Context(), input.CardUUID, input.Amount, input.MerchantID)
	if err != nil {
		if err == repositories.ErrCardNotFound || err == validation.ErrInvalidAmount {
			return c.JSON(fiber.Map{"isValid": false, "reason": err.Error()})
		}
		return response.ServerError(c, "validation unavailable")
	}
	return c.JSON(result)
}

// ProcessDirect runs the full tap-to-settlement path synchronously: validate,
// verify the PIN, create the pending transaction, submit the job, then wait a
// bounded time for a terminal state.
func (h *PaymentHandler) ProcessDirect(c *fiber.Ctx) error {
	var input struct {
		CardUUID   string  `json:"cardUuid"`
		Amount     float64 `json:"amount"`
		MerchantID uint    `json:"merchantId"`
		TerminalID string  `json:"terminalId"`
		PIN        string  `json:"pin"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.Failure(c, fiber.StatusBadRequest, "Invalid request format", "BAD_REQUEST")
	}
	if input.CardUUID == "" || input.Amount <= 0 || input.MerchantID == 0 {
		return response.Failure(c, fiber.StatusBadRequest,
			"cardUuid, amount and merchantId are required", "BAD_REQUEST")
	}

	result, err := h.validator.Validate(c.Context(), input.CardUUID, input.Amount, input.MerchantID)
	if err != nil {
		if err == repositories.ErrCardNotFound {
			return response.Failure(c, fiber.StatusNotFound, "Card not found", "CARD_NOT_FOUND")
		}
		return response.Failure(c, fiber.StatusInternalServerError, "validation unavailable", "INTERNAL")
	}
	if !result.Valid {
		return response.Failure(c, fiber.StatusBadRequest, result.Reason, "VALIDATION_FAILED")
	}

	card, err := h.cards.GetByUUID(c.Context(), input.CardUUID)
	if err != nil {
		return response.Failure(c, fiber.StatusNotFound, "Card not found", "CARD_NOT_FOUND")
	}
	user, err := h.users.GetByID(c.Context(), card.UserID)
	if err != nil {
		return response.Failure(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(input.PIN)); err != nil {
		return response.Failure(c, fiber.StatusUnauthorized, "Invalid PIN", "INVALID_PIN")
	}
	merchant, err := h.merchants.GetByID(c.Context(), input.MerchantID)
	if err != nil {
		return response.Failure(c, fiber.StatusNotFound, "Merchant not found", "MERCHANT_NOT_FOUND")
	}

	gasFee := h.chainClient.EstimateGasFee(input.Amount)
	tx := &models.Transaction{
		TransactionID: fmt.Sprintf("TX-%d-%d", time.Now().UnixNano(), user.ID),
		CardID:        card.ID,
		CardUUID:      card.CardUUID,
		UserID:        user.ID,
		MerchantID:    merchant.ID,
		TerminalID:    input.TerminalID,
		Amount:        input.Amount,
		GasFee:        gasFee,
		TotalAmount:   input.Amount + gasFee,
		Status:        models.TransactionStatusPending,
	}
	if err := h.transactions.Create(c.Context(), tx); err != nil {
		return response.Failure(c, fiber.StatusInternalServerError, "failed to record transaction", "INTERNAL")
	}

	_, err = h.pipeline.Submit(c.Context(), tx.TransactionID, pipeline.PaymentData{
		CardUUID:              card.CardUUID,
		Amount:                input.Amount,
		MerchantID:            merchant.ID,
		MerchantWalletAddress: merchant.WalletAddress,
		TerminalID:            input.TerminalID,
		UserID:                user.ID,
		UserWalletAddress:     user.WalletAddress,
		GasFee:                gasFee,
		TotalAmount:           tx.TotalAmount,
	})
	if err != nil {
		return response.Failure(c, fiber.StatusInternalServerError, "failed to submit payment", "SUBMIT_FAILED")
	}

	final, err := h.waitForTerminal(c.Context(), tx.TransactionID)
	if err != nil {
		// Still running: hand back the pending snapshot, the realtime
		// channel carries the outcome.
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success":     true,
			"transaction": h.transactionView(tx),
		})
	}
	if final.Status == models.TransactionStatusFailed {
		return response.Failure(c, fiber.StatusBadRequest, final.FailureReason, "PAYMENT_FAILED")
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"transaction": h.transactionView(final),
	})
}

// Status returns the current transaction snapshot.
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	id := c.Params("transactionId")
	tx, err := h.transactions.GetByTransactionID(c.Context(), id)
	if err != nil {
		if err == repositories.ErrTransactionNotFound {
			return response.Failure(c, fiber.StatusNotFound, "Transaction not found", "NOT_FOUND")
		}
		return response.Failure(c, fiber.StatusInternalServerError, "lookup failed", "INTERNAL")
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"transaction": h.transactionView(tx),
	})
}

func (h *PaymentHandler) waitForTerminal(ctx context.Context, transactionID string) (*models.Transaction, error) {
	deadline := time.Now().Add(h.waitTimeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			tx, err := h.transactions.GetByTransactionID(ctx, transactionID)
			if err == nil && tx.Terminal() {
				return tx, nil
			}
			if time.Now().After(deadline) {
				return nil, context.DeadlineExceeded
			}
		}
	}
}

func (h *PaymentHandler) transactionView(tx *models.Transaction) fiber.Map {
	view := fiber.Map{
		"transactionId": tx.TransactionID,
		"amount":        tx.Amount,
		"gasFee":        tx.GasFee,
		"totalAmount":   tx.TotalAmount,
		"status":        tx.Status,
	}
	if tx.TxHash != "" {
		view["txHash"] = tx.TxHash
		view["explorerUrl"] = h.chainClient.ExplorerURL(tx.TxHash)
	}
	if tx.FailureReason != "" {
		view["failureReason"] = tx.FailureReason
	}
	return view
}
