package handlers

import (
	"net/http"

	settingsRepo "bloomdispatch/database/repository/settings"
	"bloomdispatch/services/sweep"
	"bloomdispatch/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SweepHandler lets an external scheduler trigger a timeout sweep.
type SweepHandler struct {
	Sweeper  *sweep.Sweeper
	Settings settingsRepo.SettingsRepository
}

func NewSweepHandler(s *sweep.Sweeper, settings settingsRepo.SettingsRepository) *SweepHandler {
	return &SweepHandler{Sweeper: s, Settings: settings}
}

// SweepErrorResponse carries the partial summary of an interrupted sweep.
type SweepErrorResponse struct {
	utils.ErrorResponse
	Summary *sweep.Summary `json:"summary"`
}

// RunSweepHandler handles POST /api/internal/timeout-sweep.
func (h *SweepHandler) RunSweepHandler(c *gin.Context) {
	summary, err := h.Sweeper.RunWithSettings(c.Request.Context(), h.Settings)
	if err != nil && summary == nil {
		getLogger(c).Error("timeout sweep failed", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "timeout sweep failed", err.Error())
		return
	}
	if err != nil {
		// Bookings already processed stay processed; report them.
		getLogger(c).Error("timeout sweep interrupted", zap.Error(err), zap.Int("processed", summary.Processed))
		c.JSON(http.StatusInternalServerError, SweepErrorResponse{
			ErrorResponse: utils.ErrorResponse{Message: "timeout sweep interrupted", Details: err.Error()},
			Summary:       summary,
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}
