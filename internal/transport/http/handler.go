package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/richardliu001/wallet-ledger/internal/money"
	"github.com/richardliu001/wallet-ledger/internal/paystack"
	"github.com/richardliu001/wallet-ledger/internal/service"
	"go.uber.org/zap"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	defaultListLimit   = 50
	maxListLimit       = 200
	maxIdempotencyKeyN = 128
	maxWebhookBody     = 1 << 20
)

var (
	errMissingIdempotencyKey = apperr.New(apperr.Validation, "Idempotency-Key header is required")
	errBadRequestBody        = apperr.New(apperr.Validation, "invalid request body")
	errBadLimit              = apperr.New(apperr.Validation, "limit must be a positive integer")
	errBodyTooLarge          = apperr.New(apperr.Validation, "request body too large")
)

// Handler serves the /v1/wallet routes.
type Handler struct {
	wallets  *service.WalletService
	deposits *service.DepositService
	log      *zap.SugaredLogger
}

func NewHandler(wallets *service.WalletService, deposits *service.DepositService, log *zap.SugaredLogger) *Handler {
	return &Handler{wallets: wallets, deposits: deposits, log: log}
}

// RegisterHandlers mounts the webhook on g unauthenticated and everything
// else behind authn.
func (h *Handler) RegisterHandlers(g *gin.RouterGroup, authn gin.HandlerFunc) {
	g.POST("/paystack/webhook", h.webhook)

	authed := g.Group("", authn)
	{
		authed.POST("/transfer", h.transfer)
		authed.POST("/deposit", h.deposit)
		authed.GET("/deposit/:reference/status", h.depositStatus)
		authed.GET("/balance", h.balance)
		authed.GET("/transactions", h.transactions)
	}
}

type transferReq struct {
	WalletNumber string      `json:"wallet_number"`
	Amount       json.Number `json:"amount"`
}

func (h *Handler) transfer(c *gin.Context) {
	key := c.GetHeader(idempotencyHeader)
	if key == "" || len(key) > maxIdempotencyKeyN {
		writeError(c, h.log, errMissingIdempotencyKey)
		return
	}
	var req transferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, errBadRequestBody)
		return
	}
	amt, err := money.ParseMinor(req.Amount)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	res, err := h.wallets.Transfer(c.Request.Context(), principalFrom(c), service.TransferRequest{
		WalletNumber:   req.WalletNumber,
		Amount:         amt,
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"message":       "Transfer completed",
		"amount":        res.Amount,
		"wallet_number": res.RecipientNumber,
		"balance":       res.NewSenderBalance,
		"replayed":      res.Replayed,
	})
}

type depositReq struct {
	Amount json.Number `json:"amount"`
}

func (h *Handler) deposit(c *gin.Context) {
	var req depositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, errBadRequestBody)
		return
	}
	amt, err := money.ParseMinor(req.Amount)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	init, err := h.deposits.InitializeDeposit(c.Request.Context(), principalFrom(c), amt)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reference":         init.Reference,
		"authorization_url": init.AuthorizationURL,
	})
}

func (h *Handler) depositStatus(c *gin.Context) {
	st, err := h.deposits.CheckDepositStatus(c.Request.Context(), principalFrom(c), c.Param("reference"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// webhook answers 200 for anything accepted, duplicates included, and 503
// only when the sender should redeliver.
func (h *Handler) webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorStatus(c, h.log, http.StatusRequestEntityTooLarge, errBodyTooLarge)
			return
		}
		writeError(c, h.log, errBadRequestBody)
		return
	}
	st, err := h.deposits.SettleDeposit(c.Request.Context(), raw, c.GetHeader(paystack.SignatureHeader))
	if err != nil {
		status := statusFor(apperr.KindOf(err))
		if status != http.StatusServiceUnavailable && status < http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeErrorStatus(c, h.log, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st.Result, "reason": st.Reason})
}

func (h *Handler) balance(c *gin.Context) {
	bal, err := h.wallets.GetBalance(c.Request.Context(), principalFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet_number":   bal.WalletNumber,
		"balance":         bal.Balance,
		"balance_display": money.FormatMajor(bal.Balance),
	})
}

func (h *Handler) transactions(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, h.log, errBadLimit)
			return
		}
		limit = min(n, maxListLimit)
	}
	txs, err := h.wallets.ListTransactions(c.Request.Context(), principalFrom(c), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, presentTransactions(txs))
}
