package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// ResolutionHandler exposes the batch trigger and single-mention endpoints.
type ResolutionHandler struct {
	svc    appres.Service
	logger logging.Logger
}

func NewResolutionHandler(svc appres.Service, logger logging.Logger) *ResolutionHandler {
	return &ResolutionHandler{svc: svc, logger: logger.Named("resolution-api")}
}

// RunRequest is the batch trigger body. RunID is optional; reusing the ID
// of an interrupted run resumes it from its checkpoint.
type RunRequest struct {
	RunID    string                `json:"run_id,omitempty"`
	Mentions []restypes.MentionDTO `json:"mentions" binding:"required"`
}

// RunResponse summarizes a finished batch run.
type RunResponse struct {
	RunID            string                     `json:"run_id"`
	Decisions        int                        `json:"decisions"`
	Rejections       []restypes.RejectionRecord `json:"rejections"`
	BucketsProcessed int                        `json:"buckets_processed"`
	BucketsSkipped   int                        `json:"buckets_skipped"`
	ResumedFrom      string                     `json:"resumed_from,omitempty"`
}

// Run handles POST /resolution/runs. The run executes synchronously; large
// batches belong on the message bus instead.
func (h *ResolutionHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: string(errors.ErrCodeBadRequest), Message: "invalid request body: " + err.Error()})
		return
	}
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	result, err := h.svc.Run(c.Request.Context(), &appres.RunInput{
		RunID:    req.RunID,
		Mentions: req.Mentions,
	})
	if err != nil {
		h.logger.Error("batch run failed", logging.String("run_id", req.RunID), logging.Err(err))
		respondError(c, err)
		return
	}

	rejections := result.Rejections
	if rejections == nil {
		rejections = []restypes.RejectionRecord{}
	}
	c.JSON(http.StatusOK, RunResponse{
		RunID:            req.RunID,
		Decisions:        len(result.Decisions),
		Rejections:       rejections,
		BucketsProcessed: result.BucketsProcessed,
		BucketsSkipped:   result.BucketsSkipped,
		ResumedFrom:      result.ResumedFrom,
	})
}

// Resolve handles POST /resolution/mentions: resolves one mention and
// returns its decision.
func (h *ResolutionHandler) Resolve(c *gin.Context) {
	var dto restypes.MentionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: string(errors.ErrCodeBadRequest), Message: "invalid request body: " + err.Error()})
		return
	}

	decision, err := h.svc.ResolveOne(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
