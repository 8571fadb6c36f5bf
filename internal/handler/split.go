package handler

import (
	"net/http"
	"strconv"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/ledger"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/util"

	"github.com/gin-gonic/gin"
)

// SplitHandler serves the sub-transaction split endpoints.
type SplitHandler struct {
	Engine *ledger.Engine
}

func NewSplitHandler(engine *ledger.Engine) *SplitHandler {
	return &SplitHandler{Engine: engine}
}

type splitItemReq struct {
	Amount       string `json:"amount" binding:"required"`
	Category     string `json:"category" binding:"max=64"`
	MerchantName string `json:"merchant_name" binding:"max=128"`
	UserNotes    string `json:"user_notes" binding:"max=255"`
}

type commitSplitReq struct {
	Items []splitItemReq `json:"items" binding:"required"`
}

// CommitSplit replaces the transaction's whole sub-transaction set.
func (h *SplitHandler) CommitSplit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	var req commitSplitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}

	items := make([]ledger.SplitItem, 0, len(req.Items))
	for i, it := range req.Items {
		amount, err := util.ParseAmount(it.Amount)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
				"item "+strconv.Itoa(i+1)+": "+err.Error())
			return
		}
		items = append(items, ledger.SplitItem{
			Amount:       amount,
			Category:     it.Category,
			MerchantName: it.MerchantName,
			UserNotes:    it.UserNotes,
		})
	}

	result, err := h.Engine.CommitSplit(uint(id), user.ID, items)
	if err != nil {
		writeLedgerError(c, err)
		return
	}

	subs := make([]subTransactionResp, 0, len(result.Subs))
	for i := range result.Subs {
		subs = append(subs, toSubTransactionResp(&result.Subs[i]))
	}

	msg := "split committed"
	if result.Validation.Status == ledger.SplitUnder {
		msg = "split committed but incomplete: " + result.Validation.Difference.StringFixed(2) + " unallocated"
	}

	util.Success(c, util.Response{
		"sub_transactions": subs,
		"validation": util.Response{
			"is_valid":   result.Validation.IsValid(),
			"status":     result.Validation.Status,
			"sub_total":  result.Validation.SubTotal.StringFixed(2),
			"difference": result.Validation.Difference.StringFixed(2),
			"message":    msg,
		},
		"replaced":          result.Replaced,
		"orphaned_link_ids": result.OrphanedLinkIDs,
	})
}

// ClearSplit removes the transaction's sub-transaction set.
func (h *SplitHandler) ClearSplit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid transaction id")
		return
	}

	if err := h.Engine.ClearSplit(uint(id), user.ID); err != nil {
		writeLedgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
