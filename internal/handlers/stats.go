package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/services"
)

// StatsHandler exposes storage reports and upload activity.
type StatsHandler struct {
	statsService *services.StatsService
	quotaService *services.QuotaService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsService *services.StatsService, quotaService *services.QuotaService) *StatsHandler {
	return &StatsHandler{statsService: statsService, quotaService: quotaService}
}

// Report handles GET /stats/storage.
func (h *StatsHandler) Report(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	report, err := h.statsService.StorageReport(c.Request.Context(), userID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Storage report retrieved", report)
}

// Quota handles GET /stats/quota.
func (h *StatsHandler) Quota(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	usage, err := h.quotaService.Usage(c.Request.Context(), userID)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Quota retrieved", usage)
}

// Calendar handles GET /stats/calendar?year=2026&month=8. Defaults to
// the current month.
func (h *StatsHandler) Calendar(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()

	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1970 || n > 9999 {
			pkg.HandleError(c, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
				"param": "year",
			}))
			return
		}
		year = n
	}
	if v := c.Query("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			pkg.HandleError(c, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
				"param": "month",
			}))
			return
		}
		month = time.Month(n)
	}

	stats, err := h.statsService.Calendar(c.Request.Context(), userID, year, month)
	if err != nil {
		pkg.HandleError(c, err)
		return
	}
	pkg.SuccessResponse(c, http.StatusOK, "Calendar stats retrieved", stats)
}
