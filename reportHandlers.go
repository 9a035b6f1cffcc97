package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/models/reports"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/mmdatafocus/mdm_backend/workflow"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func preflightHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		issues, err := workflow.Preflight(c.Request.Context(), config.GetDB(), kind, schoolId, p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if issues == nil {
			issues = []models.PreflightIssue{}
		}
		c.JSON(http.StatusOK, gin.H{
			"kind":         kind,
			"period":       p.String(),
			"can_generate": len(issues) == 0,
			"issues":       issues,
		})
	}
}

func generateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		snap, err := workflow.GenerateReport(ctx, config.GetDB(), config.GetLogger(), kind, schoolId, p, models.ActorFromContext(ctx))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, snap)
	}
}

func regenerateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		snap, err := workflow.RegenerateReport(ctx, config.GetDB(), config.GetLogger(), kind, schoolId, p, models.ActorFromContext(ctx))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func getReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		snap, err := reports.GetSnapshot(c.Request.Context(), config.GetDB(), kind, schoolId, p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func exportReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		snap, err := reports.GetSnapshot(c.Request.Context(), config.GetDB(), kind, schoolId, p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		var buf bytes.Buffer
		if err := reports.ExportSnapshot(snap, &buf); err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reports.ExportFileName(snap)))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func checkReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		stale, err := workflow.CheckSnapshot(c.Request.Context(), config.GetDB(), config.GetLogger(), kind, schoolId, p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"kind":     kind,
			"period":   p.String(),
			"is_stale": stale,
		})
	}
}

func revalidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, _ := utils.GetSchoolIdFromContext(c.Request.Context())
		result, err := workflow.RevalidateSnapshots(c.Request.Context(), config.GetDB(), config.GetLogger(), schoolId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func addPurchaseBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, kind, p, ok := pathKindPeriod(c)
		if !ok {
			return
		}
		if kind != models.ResourceAmount {
			c.JSON(http.StatusBadRequest, gin.H{"error": "purchase bills attach to amount reports"})
			return
		}
		var input models.NewPurchaseBill
		if !bindRequest(c, &input) {
			return
		}
		bill, err := workflow.AddPurchaseBill(c.Request.Context(), config.GetDB(), config.GetLogger(), schoolId, p, input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, bill)
	}
}

type attendanceChangedRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

func staleSummary(changed []models.ReportSnapshot) []gin.H {
	out := make([]gin.H, 0, len(changed))
	for _, s := range changed {
		st := s.StalenessState()
		out = append(out, gin.H{
			"kind":         s.Kind(),
			"period":       s.Period().String(),
			"stale_reason": st.StaleReason,
		})
	}
	return out
}

func attendanceChangedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schoolId, _ := utils.GetSchoolIdFromContext(c.Request.Context())
		var req attendanceChangedRequest
		if !bindRequest(c, &req) {
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		changed, err := workflow.NotifyAttendanceChanged(c.Request.Context(), config.GetDB(), config.GetLogger(), schoolId, date)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stale": staleSummary(changed)})
	}
}

// PubSubMessage is the push-subscription envelope.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type attendanceChangedEvent struct {
	SchoolId      string `json:"school_id" validate:"required"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	CorrelationId string `json:"correlation_id"`
}

// attendancePubSubHandler consumes attendance-change events pushed by the
// attendance service, once per message id. Malformed messages are acked so
// they are not retried; processing errors return 500 so Pub/Sub redelivers.
func attendancePubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		var msg PubSubMessage

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "reportHandlers.go", "attendancePubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "reportHandlers.go", "attendancePubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var evt attendanceChangedEvent
		if err := json.Unmarshal(msg.Message.Data, &evt); err != nil {
			config.LogError(logger, "reportHandlers.go", "attendancePubSubHandler", "Unmarshal event", string(msg.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if err := utils.ValidateStruct(evt); err != nil {
			config.LogError(logger, "reportHandlers.go", "attendancePubSubHandler", "Invalid event", evt, err)
			c.Status(http.StatusNoContent)
			return
		}
		date, _ := time.Parse("2006-01-02", evt.Date)

		correlationId := evt.CorrelationId
		if correlationId == "" {
			correlationId = msg.Message.ID
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		ctx = utils.SetSchoolIdInContext(ctx, evt.SchoolId)

		messageId := msg.Message.ID
		if messageId == "" {
			// No delivery id to deduplicate on.
			messageId = uuid.NewString()
		}
		changed, duplicate, err := workflow.ProcessAttendanceEvent(ctx, config.GetDB(), logger, evt.SchoolId, messageId, date)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		logger.WithFields(logrus.Fields{
			"field":          "attendancePubSubHandler",
			"school_id":      evt.SchoolId,
			"date":           evt.Date,
			"message_id":     messageId,
			"correlation_id": correlationId,
			"duplicate":      duplicate,
			"stale":          len(changed),
		}).Info("attendance change processed")
		c.Status(http.StatusNoContent)
	}
}
