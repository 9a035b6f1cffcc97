package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/mmdatafocus/mdm_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// currentPeriod is the period the "current" path alias resolves to.
var currentPeriod = func() models.Period { return models.PeriodOf(time.Now().UTC()) }

func pathPeriod(c *gin.Context) (models.Period, bool) {
	raw := c.Param("period")
	if strings.EqualFold(raw, "current") {
		return currentPeriod(), true
	}
	p, err := models.ParsePeriod(raw)
	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Period{}, false
	}
	return p, true
}

func pathKind(c *gin.Context) (models.ResourceKind, bool) {
	kind, err := models.ParseResourceKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return kind, true
}

// pathKindPeriod resolves the school header and the :kind/:period params.
func pathKindPeriod(c *gin.Context) (string, models.ResourceKind, models.Period, bool) {
	schoolId, _ := utils.GetSchoolIdFromContext(c.Request.Context())
	kind, ok := pathKind(c)
	if !ok {
		return "", "", models.Period{}, false
	}
	p, ok := pathPeriod(c)
	if !ok {
		return "", "", models.Period{}, false
	}
	return schoolId, kind, p, true
}

// bindRequest decodes an optional JSON body and runs its validate tags.
func bindRequest(c *gin.Context, req any) bool {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return false
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrValidation),
		errors.Is(err, models.ErrInvalidPeriod),
		errors.Is(err, models.ErrInvalidPercentages),
		errors.Is(err, models.ErrConfigurationMissing),
		errors.Is(err, models.ErrNoSourceData):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSnapshotNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateGeneration),
		errors.Is(err, models.ErrLedgerNotLocked),
		errors.Is(err, models.ErrLedgerNotCompleted),
		errors.Is(err, models.ErrLedgerChain):
		return http.StatusConflict
	case errors.Is(err, models.ErrLedgerLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the mapped status. Unexpected errors are attached
// for customErrorLogger and their text is not echoed to the client.
func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func ledgerBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		balance, err := workflow.GetLedgerBalance(c.Request.Context(), config.GetDB(), config.GetLogger(), kind, schoolId, p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, balance)
	}
}

type inboundRequest struct {
	Section  string           `json:"section" validate:"required,oneof=primary middle"`
	Lifted   *utils.Amount `json:"lifted"`
	Arranged *utils.Amount `json:"arranged"`
	Received *utils.Amount `json:"received"`
}

func orZero(a *utils.Amount) decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	return a.Decimal
}

func inboundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		var req inboundRequest
		if !bindRequest(c, &req) {
			return
		}
		section, err := models.ParseSection(req.Section)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		var balance *models.LedgerBalance
		switch kind {
		case models.ResourceRice:
			if req.Received != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "rice ledgers take lifted and arranged"})
				return
			}
			balance, err = workflow.SetRiceInbound(ctx, config.GetDB(), config.GetLogger(), schoolId, p, section, orZero(req.Lifted), orZero(req.Arranged))
		case models.ResourceAmount:
			if req.Lifted != nil || req.Arranged != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "amount ledgers take received"})
				return
			}
			balance, err = workflow.SetAmountReceived(ctx, config.GetDB(), config.GetLogger(), schoolId, p, section, orZero(req.Received))
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, balance)
	}
}

func syncLedgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		balance, err := workflow.SyncLedger(c.Request.Context(), config.GetDB(), config.GetLogger(), kind, schoolId, p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, balance)
	}
}

type lockRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func lockLedgerHandler(action models.LedgerLockAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		var req lockRequest
		if !bindRequest(c, &req) {
			return
		}

		ctx := c.Request.Context()
		actor := models.ActorFromContext(ctx)
		var (
			balance *models.LedgerBalance
			err     error
		)
		if action == models.LedgerLockActionLock {
			balance, err = workflow.LockLedger(ctx, config.GetDB(), config.GetLogger(), kind, schoolId, p, actor, req.Reason)
		} else {
			balance, err = workflow.UnlockLedger(ctx, config.GetDB(), config.GetLogger(), kind, schoolId, p, actor, req.Reason)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, balance)
	}
}

type completeRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func completePeriodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, _ := utils.GetSchoolIdFromContext(c.Request.Context())
		p, ok := pathPeriod(c)
		if !ok {
			return
		}
		var req completeRequest
		if !bindRequest(c, &req) {
			return
		}

		ctx := c.Request.Context()
		completed, err := workflow.CompletePeriod(ctx, config.GetDB(), config.GetLogger(), schoolId, p, models.ActorFromContext(ctx), req.Notes)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"school_id": schoolId,
			"period":    p.String(),
			"completed": completed,
		})
	}
}

func ratesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, _ := utils.GetSchoolIdFromContext(c.Request.Context())
		p, ok := pathPeriod(c)
		if !ok {
			return
		}
		rates, err := models.ResolveRates(config.GetDB().WithContext(c.Request.Context()), schoolId, p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"school_id": schoolId,
			"period":    p.String(),
			"rates":     rates,
		})
	}
}
