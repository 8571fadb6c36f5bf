package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/ledger"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionHandler serves the transaction records the reconciliation
// core works over. Creation is the ingestion subsystem's write path;
// everything extracted from email lands here already parsed.
type TransactionHandler struct {
	DB     *gorm.DB
	Engine *ledger.Engine
}

func NewTransactionHandler(db *gorm.DB, engine *ledger.Engine) *TransactionHandler {
	return &TransactionHandler{DB: db, Engine: engine}
}

type createTransactionReq struct {
	Amount          string `json:"amount" binding:"required"`
	Currency        string `json:"currency" binding:"required"`
	Direction       string `json:"direction" binding:"required,oneof=debit credit transfer"`
	MerchantName    string `json:"merchant_name" binding:"max=128"`
	Category        string `json:"category" binding:"max=64"`
	ReferenceID     string `json:"reference_id" binding:"max=128"`
	AccountHint     string `json:"account_hint" binding:"max=64"`
	SourceMessageID string `json:"source_message_id" binding:"max=255"`
	OccurredAt      string `json:"occurred_at"`
}

type transactionResp struct {
	ID                 uint      `json:"id"`
	Amount             string    `json:"amount"`
	Currency           string    `json:"currency"`
	Direction          string    `json:"direction"`
	MerchantName       string    `json:"merchant_name"`
	MerchantNormalized string    `json:"merchant_normalized"`
	Category           string    `json:"category"`
	ReferenceID        string    `json:"reference_id,omitempty"`
	AccountHint        string    `json:"account_hint,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
	CreatedAt          time.Time `json:"created_at"`
}

func toTransactionResp(t *models.Transaction) transactionResp {
	return transactionResp{
		ID:                 t.ID,
		Amount:             t.Amount.StringFixed(2),
		Currency:           t.Currency,
		Direction:          t.Direction,
		MerchantName:       t.MerchantName,
		MerchantNormalized: t.MerchantNormalized,
		Category:           t.Category,
		ReferenceID:        t.ReferenceID,
		AccountHint:        t.AccountHint,
		OccurredAt:         t.OccurredAt,
		CreatedAt:          t.CreatedAt,
	}
}

type subTransactionResp struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	Category     string `json:"category,omitempty"`
	MerchantName string `json:"merchant_name,omitempty"`
	UserNotes    string `json:"user_notes,omitempty"`
	Order        int    `json:"order"`
}

func toSubTransactionResp(s *models.SubTransaction) subTransactionResp {
	return subTransactionResp{
		ID:           s.ID,
		Amount:       s.Amount.StringFixed(2),
		Category:     s.Category,
		MerchantName: s.MerchantName,
		UserNotes:    s.UserNotes,
		Order:        s.Order,
	}
}

// CreateTransaction persists one extracted transaction.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}

	amount, err := util.ParseAmount(req.Amount)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := util.ValidateCurrency(req.Currency); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		occurredAt, err = util.ParseOccurredAt(req.OccurredAt)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
	}

	txn := models.Transaction{
		UserID:             user.ID,
		Amount:             amount,
		Currency:           req.Currency,
		Direction:          req.Direction,
		MerchantName:       req.MerchantName,
		MerchantNormalized: ledger.NormalizeMerchant(req.MerchantName),
		Category:           req.Category,
		ReferenceID:        req.ReferenceID,
		AccountHint:        req.AccountHint,
		SourceMessageID:    req.SourceMessageID,
		OccurredAt:         occurredAt,
	}

	if err := h.DB.Create(&txn).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save failed, please retry")
		return
	}

	util.Success(c, util.Response{
		"transaction": toTransactionResp(&txn),
	})
}

// ListTransactions lists own transactions with direction/currency
// filters and pagination.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	base := h.DB.Model(&models.Transaction{}).Where("user_id = ?", user.ID)

	if d := c.Query("direction"); d == models.DirectionDebit || d == models.DirectionCredit || d == models.DirectionTransfer {
		base = base.Where("direction = ?", d)
	}
	if cur := strings.ToUpper(c.Query("currency")); cur != "" {
		base = base.Where("currency = ?", cur)
	}
	if m := strings.TrimSpace(c.Query("merchant")); m != "" {
		base = base.Where("merchant_normalized LIKE ?", "%"+ledger.NormalizeMerchant(m)+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	var txns []models.Transaction
	if err := base.Order("occurred_at DESC, id DESC").Offset(offset).Limit(size).Find(&txns).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	items := make([]transactionResp, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResp(&txns[i]))
	}

	util.Success(c, util.Response{
		"transactions": items,
		"page":         page,
		"page_size":    size,
		"total":        total,
	})
}

// GetTransaction returns one transaction plus its split items and the
// live refund status.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	var txn models.Transaction
	if err := h.DB.Where("id = ? AND user_id = ?", id, user.ID).First(&txn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "transaction not found")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		}
		return
	}

	var subs []models.SubTransaction
	if err := h.DB.Where("transaction_id = ?", txn.ID).Order("sort_order").Find(&subs).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}
	subItems := make([]subTransactionResp, 0, len(subs))
	subTotal := decimal.Zero
	for i := range subs {
		subItems = append(subItems, toSubTransactionResp(&subs[i]))
		subTotal = subTotal.Add(subs[i].Amount)
	}

	resp := util.Response{
		"transaction":      toTransactionResp(&txn),
		"sub_transactions": subItems,
		"sub_total":        subTotal.StringFixed(2),
	}

	// refund status only makes sense for debit originals
	if txn.Direction == models.DirectionDebit {
		status, err := h.Engine.Status(user.ID, ledger.TransactionRef(txn.ID))
		if err != nil {
			writeLedgerError(c, err)
			return
		}
		resp["refund_status"] = statusResp(status)
	}

	util.Success(c, resp)
}

func statusResp(s *ledger.RefundStatus) util.Response {
	return util.Response{
		"original_amount":   s.OriginalAmount.StringFixed(2),
		"total_refunded":    s.TotalRefunded.StringFixed(2),
		"remaining_amount":  s.RemainingAmount.StringFixed(2),
		"is_fully_refunded": s.IsFullyRefunded,
		"refund_count":      s.RefundCount,
	}
}
