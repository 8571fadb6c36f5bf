package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportHandler exports the reconciliation ledger (refund links joined
// with their refund and original transactions).
type ExportHandler struct {
	DB *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{DB: db}
}

var exportHeaders = []string{
	"Link ID", "Created", "Refund Txn", "Refund Merchant",
	"Original Type", "Original ID", "Original Merchant",
	"Allocated", "Currency", "Refund Type", "Match Method", "Confidence",
}

type exportRow struct {
	cells []string
}

func (h *ExportHandler) rows(userID uint) ([]exportRow, error) {
	var links []models.RefundLink
	if err := h.DB.Where("user_id = ?", userID).Order("created_at").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}

	// resolve referenced transactions and sub-transactions in bulk
	txnIDs := make([]uint, 0, len(links)*2)
	subIDs := make([]string, 0, len(links))
	for _, l := range links {
		txnIDs = append(txnIDs, l.RefundTransactionID)
		if l.OriginalTransactionID != nil {
			txnIDs = append(txnIDs, *l.OriginalTransactionID)
		}
		if l.OriginalSubTransactionID != nil {
			subIDs = append(subIDs, *l.OriginalSubTransactionID)
		}
	}

	txnByID := make(map[uint]models.Transaction)
	if len(txnIDs) > 0 {
		var txns []models.Transaction
		if err := h.DB.Where("id IN ?", txnIDs).Find(&txns).Error; err != nil {
			return nil, fmt.Errorf("load transactions: %w", err)
		}
		for _, t := range txns {
			txnByID[t.ID] = t
		}
	}
	subByID := make(map[string]models.SubTransaction)
	if len(subIDs) > 0 {
		var subs []models.SubTransaction
		if err := h.DB.Where("id IN ?", subIDs).Find(&subs).Error; err != nil {
			return nil, fmt.Errorf("load sub-transactions: %w", err)
		}
		for _, s := range subs {
			subByID[s.ID] = s
		}
	}

	rows := make([]exportRow, 0, len(links))
	for _, l := range links {
		refund := txnByID[l.RefundTransactionID]

		originalID := ""
		originalMerchant := ""
		switch {
		case l.OriginalTransactionID != nil:
			originalID = strconv.FormatUint(uint64(*l.OriginalTransactionID), 10)
			originalMerchant = txnByID[*l.OriginalTransactionID].MerchantName
		case l.OriginalSubTransactionID != nil:
			originalID = *l.OriginalSubTransactionID
			sub := subByID[*l.OriginalSubTransactionID]
			originalMerchant = sub.MerchantName
			if originalMerchant == "" {
				originalMerchant = txnByID[sub.TransactionID].MerchantName
			}
		}

		confidence := ""
		if l.MatchConfidenceScore != nil {
			confidence = strconv.Itoa(*l.MatchConfidenceScore)
		}

		rows = append(rows, exportRow{cells: []string{
			l.ID,
			l.CreatedAt.Format("2006-01-02"),
			strconv.FormatUint(uint64(l.RefundTransactionID), 10),
			refund.MerchantName,
			l.OriginalType,
			originalID,
			originalMerchant,
			l.AllocatedAmount.StringFixed(2),
			refund.Currency,
			l.RefundType,
			l.MatchMethod,
			confidence,
		}})
	}
	return rows, nil
}

// ExportCSV writes the reconciliation ledger as CSV.
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.rows(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"reconciliation_%s.csv\"",
		time.Now().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// UTF-8 BOM so Excel detects the encoding
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer.Write(exportHeaders)
	for _, r := range rows {
		writer.Write(r.cells)
	}
}

// ExportXLSX writes the reconciliation ledger as XLSX.
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.rows(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "query failed")
		return
	}

	f := excelize.NewFile()
	sheetName := "Reconciliation"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create sheet failed")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, hd := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, hd)
	}
	for idx, r := range rows {
		for i, v := range r.cells {
			cell, _ := excelize.CoordinatesToCellName(i+1, idx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	f.SetColWidth(sheetName, "A", "A", 38)
	f.SetColWidth(sheetName, "B", "G", 16)
	f.SetColWidth(sheetName, "H", "L", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"reconciliation_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "export failed")
	}
}
