package mergesync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"bitbucket.org/mmjourneys/travel_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ResolveBusinessID extracts and validates the admin token, returning the
// business scope every query below is bound to.
func ResolveBusinessID(c *gin.Context) (string, error) {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", errors.New("unauthorized")
	}
	token, err := utils.JwtValidate(strings.TrimPrefix(auth, "Bearer "))
	if err != nil || !token.Valid {
		return "", errors.New("unauthorized")
	}
	claims, ok := token.Claims.(*utils.JwtCustomClaim)
	if !ok || strings.TrimSpace(claims.BusinessId) == "" {
		return "", errors.New("unauthorized")
	}
	return claims.BusinessId, nil
}

// TriggerRunHandler queues a reconciliation run and publishes it to the
// worker topic. Returns 409 when a run is already queued or running.
func TriggerRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// An empty body is a valid trigger.
		var req TriggerRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			req = TriggerRunRequest{}
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		var active int64
		if err := db.Model(&models.ReconRun{}).
			Where("business_id = ? AND status IN ?", businessId,
				[]string{models.ReconRunStatusQueued, models.ReconRunStatusRunning}).
			Count(&active).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if active > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "a reconciliation run is already in progress"})
			return
		}

		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		run := models.ReconRun{
			BusinessId:    businessId,
			Status:        models.ReconRunStatusQueued,
			TriggeredBy:   models.ReconTriggeredManual,
			DryRun:        req.DryRun,
			CorrelationId: correlationId,
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := PublishReconRun(ctx, run.ID, businessId, req.DryRun); err != nil {
			config.LogError(config.GetLogger(), "mergesync", "TriggerRunHandler", "failed to publish recon run", run.ID, err)
		}

		c.JSON(http.StatusAccepted, gin.H{"id": run.ID})
	}
}

// RunsHandler lists recent runs, newest first.
func RunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		var runs []models.ReconRun
		if err := db.Where("business_id = ?", businessId).
			Order("id DESC").
			Limit(limit).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		out := make([]RunResponse, 0, len(runs))
		for _, run := range runs {
			out = append(out, toRunResponse(run))
		}
		c.JSON(http.StatusOK, gin.H{"runs": out})
	}
}

// RunDetailHandler returns one run with its stats and per-record errors.
func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		runId, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		var run models.ReconRun
		if err := db.Where("id = ? AND business_id = ?", runId, businessId).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var runErrors []models.ReconRunError
		if err := db.Where("run_id = ? AND business_id = ?", run.ID, businessId).
			Order("id ASC").
			Limit(200).
			Find(&runErrors).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		detail := RunDetailResponse{
			RunResponse: toRunResponse(run),
			Stats:       DecodeStats(run.StatsJSON),
			Errors:      make([]RunErrorResponse, 0, len(runErrors)),
		}
		for _, e := range runErrors {
			detail.Errors = append(detail.Errors, RunErrorResponse{
				ID:         e.ID,
				EntityType: e.EntityType,
				SourceKey:  e.SourceKey,
				ErrorCode:  e.ErrorCode,
				Message:    e.Message,
				Retryable:  e.Retryable,
			})
		}
		c.JSON(http.StatusOK, detail)
	}
}

// GateHandler runs the reconciliation gate now and returns the report.
func GateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB()
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

		var lastRun models.ReconRun
		_ = db.WithContext(ctx).
			Where("business_id = ?", businessId).
			Order("id DESC").
			Limit(1).
			Find(&lastRun).Error

		report, err := workflow.RunGate(ctx, db, businessId, lastRun.ID, correlationId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// GateLatestHandler returns the most recent persisted gate report.
func GateLatestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		report, err := workflow.LatestGateReport(ctx, config.GetDB(), businessId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no gate run yet"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func toRunResponse(run models.ReconRun) RunResponse {
	return RunResponse{
		ID:            run.ID,
		Status:        run.Status,
		DryRun:        run.DryRun,
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsMerged: run.RecordsMerged,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.TriggeredBy,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
