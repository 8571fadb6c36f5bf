package handler

import (
	"errors"
	"net/http"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/ledger"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/util"

	"github.com/gin-gonic/gin"
)

// currentUser pulls the authenticated user out of the gin context and
// writes the auth error itself when missing.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get("currentUser")
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return nil, false
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return nil, false
	}
	return user, true
}

// writeLedgerError maps core errors onto HTTP status + business code.
// Conflicts carry the authoritative remaining amount so the caller can
// pick a corrected value.
func writeLedgerError(c *gin.Context, err error) {
	var (
		ve *ledger.ValidationError
		nf *ledger.NotFoundError
		mm *ledger.MismatchError
		cf *ledger.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, ve.Msg)
	case errors.As(err, &nf):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, nf.Error())
	case errors.As(err, &mm):
		util.Error(c, http.StatusBadRequest, util.CodeMismatch, mm.Error())
	case errors.As(err, &cf):
		util.ErrorWithDetail(c, http.StatusConflict, util.CodeConflict, cf.Msg, util.Response{
			"reason":           cf.Reason,
			"remaining_amount": cf.Remaining.StringFixed(2),
		})
	default:
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "store unavailable, please retry")
	}
}
