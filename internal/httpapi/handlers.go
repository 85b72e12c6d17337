package httpapi

import (
	"errors"
	"net/http"
	"time"

	"boomcard/internal/audit"
	"boomcard/internal/auth"
	"boomcard/internal/card"
	"boomcard/internal/cashback"
	"boomcard/internal/receipt"
	"boomcard/internal/reporting"
	"boomcard/internal/wallet"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Wallet   *wallet.Service
	Receipts *receipt.Service
	Reports  *reporting.Service
	Audit    *audit.Service
}

// statusFor maps service errors onto the HTTP error taxonomy:
// bad input 400, missing resource 404, state conflicts 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, receipt.ErrInvalidArgument),
		errors.Is(err, wallet.ErrInvalidArgument),
		errors.Is(err, card.ErrInvalidArgument),
		errors.Is(err, cashback.ErrInvalidAmount),
		errors.Is(err, reporting.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, receipt.ErrNotFound),
		errors.Is(err, wallet.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, receipt.ErrConflict),
		errors.Is(err, receipt.ErrDuplicateApproved),
		errors.Is(err, wallet.ErrConflict),
		errors.Is(err, wallet.ErrWalletLocked),
		errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, card.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortErr(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		msg = "internal error"
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func identity(c *gin.Context) (userID, role string, ok bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return "", "", false
	}
	role, _ = auth.Role(c.Request.Context())
	return userID, role, true
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Receipts ---

func (h Handlers) SubmitReceipt(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req receipt.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Receipts.Submit(c.Request.Context(), userID, req)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) GetReceipt(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}

	rec, err := h.Receipts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	// Owners see their own receipts; reviewers see everything.
	if rec.UserID != userID && !isReviewerRole(role) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": receipt.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) ListMyReceipts(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	out, err := h.Receipts.ListForUser(c.Request.Context(), userID, intQuery(c, "limit"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": out})
}

// --- Wallet ---

func (h Handlers) GetWallet(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	w, err := h.Wallet.GetByUser(c.Request.Context(), userID)
	if errors.Is(err, wallet.ErrNotFound) {
		// The wallet is created lazily on first credit; until then the
		// user has an empty one.
		c.JSON(http.StatusOK, wallet.Wallet{UserID: userID, Currency: wallet.DefaultCurrency})
		return
	}
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h Handlers) ListWalletTransactions(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	out, err := h.Wallet.Transactions(c.Request.Context(), userID, intQuery(c, "limit"))
	if errors.Is(err, wallet.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"transactions": []wallet.Transaction{}})
		return
	}
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// --- Admin: review ---

func (h Handlers) ReviewQueue(c *gin.Context) {
	out, err := h.Receipts.ReviewQueue(c.Request.Context(), intQuery(c, "limit"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": out})
}

func (h Handlers) ReviewReceipt(c *gin.Context) {
	reviewerID, role, ok := identity(c)
	if !ok {
		return
	}

	var req receipt.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rec, err := h.Receipts.Review(c.Request.Context(), receipt.Reviewer{
		UserID:    reviewerID,
		Role:      role,
		IPAddress: c.ClientIP(),
	}, c.Param("id"), req)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type bulkReviewRequest struct {
	ReceiptIDs []string              `json:"receipt_ids"`
	Review     receipt.ReviewRequest `json:"review"`
}

func (h Handlers) BulkReviewReceipts(c *gin.Context) {
	reviewerID, role, ok := identity(c)
	if !ok {
		return
	}

	var req bulkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Receipts.BulkReview(c.Request.Context(), receipt.Reviewer{
		UserID:    reviewerID,
		Role:      role,
		IPAddress: c.ClientIP(),
	}, req.ReceiptIDs, req.Review)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Admin: wallets ---

type walletLockRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) LockWallet(c *gin.Context) {
	adminID, role, ok := identity(c)
	if !ok {
		return
	}
	targetUserID := c.Param("user_id")

	var req walletLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	w, err := h.Wallet.Lock(c.Request.Context(), targetUserID, req.Reason)
	if err != nil {
		abortErr(c, err)
		return
	}
	h.logWalletLock(c, adminID, role, targetUserID, w.ID, true, req.Reason)
	c.JSON(http.StatusOK, w)
}

func (h Handlers) UnlockWallet(c *gin.Context) {
	adminID, role, ok := identity(c)
	if !ok {
		return
	}
	targetUserID := c.Param("user_id")

	w, err := h.Wallet.Unlock(c.Request.Context(), targetUserID)
	if err != nil {
		abortErr(c, err)
		return
	}
	h.logWalletLock(c, adminID, role, targetUserID, w.ID, false, "")
	c.JSON(http.StatusOK, w)
}

func (h Handlers) logWalletLock(c *gin.Context, adminID, role, targetUserID, walletID string, locked bool, reason string) {
	if h.Audit == nil {
		return
	}
	_ = h.Audit.LogWalletLock(c.Request.Context(), adminID, role, c.ClientIP(), targetUserID, walletID, locked, reason)
}

type manualCreditRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ManualCredit performs an admin-only balance adjustment.
func (h Handlers) ManualCredit(c *gin.Context) {
	adminID, role, ok := identity(c)
	if !ok {
		return
	}
	targetUserID := c.Param("user_id")

	var req manualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Reason == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reason required"})
		return
	}

	tx, w, err := h.Wallet.Credit(c.Request.Context(), targetUserID, wallet.CreditRequest{
		AmountMinor:    req.AmountMinor,
		Type:           wallet.TypeAdjustment,
		Description:    req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		abortErr(c, err)
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogManualCredit(c.Request.Context(), adminID, role, c.ClientIP(), targetUserID, w.ID, tx.ID, req.Reason)
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "wallet": w})
}

// --- Admin: reports ---

func (h Handlers) CashbackReport(c *gin.Context) {
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.CashbackSummary(c.Request.Context(), reporting.CashbackSummaryRequest{
		Range:   rng,
		VenueID: c.Query("venue_id"),
	})
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) WalletReport(c *gin.Context) {
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.WalletSummary(c.Request.Context(), reporting.WalletSummaryRequest{
		Range:  rng,
		UserID: c.Query("user_id"),
	})
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
