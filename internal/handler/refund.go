package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/ledger"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/util"

	"github.com/gin-gonic/gin"
)

// RefundHandler serves refund suggestions, link/unlink and status.
type RefundHandler struct {
	Engine *ledger.Engine
}

func NewRefundHandler(engine *ledger.Engine) *RefundHandler {
	return &RefundHandler{Engine: engine}
}

// Suggestions ranks candidate originals for a refund transaction.
func (h *RefundHandler) Suggestions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	minConfidence := -1 // engine falls back to the configured default
	if s := c.Query("min_confidence"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 || v > 100 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "min_confidence must be 0-100")
			return
		}
		minConfidence = v
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "limit must be positive")
			return
		}
		limit = v
	}

	suggestions, err := h.Engine.Suggest(uint(id), user.ID, minConfidence, limit)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	util.Success(c, util.Response{
		"suggestions": suggestions,
	})
}

type linkReq struct {
	OriginalID             string        `json:"original_id" binding:"required"`
	IsSubTransaction       bool          `json:"is_sub_transaction"`
	RefundSubTransactionID *string       `json:"refund_sub_transaction_id"`
	AllocatedAmount        string        `json:"allocated_amount" binding:"required"`
	MatchMethod            string        `json:"match_method" binding:"required,oneof=manual ai_suggestion"`
	ConfidenceScore        *int          `json:"confidence_score"`
	MatchReasons           []matchReason `json:"match_reasons"`
}

type matchReason struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type linkResp struct {
	ID                     string               `json:"id"`
	RefundTransactionID    uint                 `json:"refund_transaction_id"`
	RefundSubTransactionID *string              `json:"refund_sub_transaction_id,omitempty"`
	OriginalType           string               `json:"original_type"`
	OriginalID             string               `json:"original_id"`
	AllocatedAmount        string               `json:"allocated_amount"`
	RefundType             string               `json:"refund_type"`
	MatchMethod            string               `json:"match_method"`
	MatchConfidenceScore   *int                 `json:"match_confidence_score,omitempty"`
	MatchReasons           []ledger.MatchReason `json:"match_reasons,omitempty"`
	CreatedAt              time.Time            `json:"created_at"`
}

func toLinkResp(l *models.RefundLink) linkResp {
	resp := linkResp{
		ID:                     l.ID,
		RefundTransactionID:    l.RefundTransactionID,
		RefundSubTransactionID: l.RefundSubTransactionID,
		OriginalType:           l.OriginalType,
		AllocatedAmount:        l.AllocatedAmount.StringFixed(2),
		RefundType:             l.RefundType,
		MatchMethod:            l.MatchMethod,
		MatchConfidenceScore:   l.MatchConfidenceScore,
		CreatedAt:              l.CreatedAt,
	}
	switch {
	case l.OriginalTransactionID != nil:
		resp.OriginalID = strconv.FormatUint(uint64(*l.OriginalTransactionID), 10)
	case l.OriginalSubTransactionID != nil:
		resp.OriginalID = *l.OriginalSubTransactionID
	}
	if l.MatchReasons != "" {
		// stored as JSON; ignore decode errors, reasons are display only
		_ = json.Unmarshal([]byte(l.MatchReasons), &resp.MatchReasons)
	}
	return resp
}

// Link allocates part of the refund to an original.
func (h *RefundHandler) Link(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	refundID, err := strconv.Atoi(c.Param("id"))
	if err != nil || refundID <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	var req linkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}

	amount, err := util.ParseAmount(req.AllocatedAmount)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	var original ledger.OriginalRef
	if req.IsSubTransaction {
		original = ledger.SubTransactionRef(req.OriginalID)
	} else {
		origID, err := strconv.Atoi(req.OriginalID)
		if err != nil || origID <= 0 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid original_id")
			return
		}
		original = ledger.TransactionRef(uint(origID))
	}

	reasons := make([]ledger.MatchReason, 0, len(req.MatchReasons))
	for _, r := range req.MatchReasons {
		reasons = append(reasons, ledger.MatchReason{Type: r.Type, Description: r.Description})
	}

	link, err := h.Engine.Link(user.ID, ledger.LinkRequest{
		RefundTransactionID:    uint(refundID),
		RefundSubTransactionID: req.RefundSubTransactionID,
		Original:               original,
		Amount:                 amount,
		MatchMethod:            req.MatchMethod,
		ConfidenceScore:        req.ConfidenceScore,
		MatchReasons:           reasons,
	})
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	util.Success(c, util.Response{
		"link": toLinkResp(link),
	})
}

// Unlink deletes a refund link.
func (h *RefundHandler) Unlink(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	linkID := c.Param("linkId")
	if linkID == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid link id")
		return
	}

	if err := h.Engine.Unlink(linkID, user.ID); err != nil {
		writeLedgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Status returns the live refund aggregate for a transaction, or for
// one of its sub-transactions via ?sub_transaction_id=.
func (h *RefundHandler) Status(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	ref := ledger.TransactionRef(uint(id))
	if subID := c.Query("sub_transaction_id"); subID != "" {
		// the sub must belong to the path transaction
		if err := h.Engine.VerifySplitItem(uint(id), subID); err != nil {
			writeLedgerError(c, err)
			return
		}
		ref = ledger.SubTransactionRef(subID)
	}

	status, err := h.Engine.Status(user.ID, ref)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	util.Success(c, statusResp(status))
}
