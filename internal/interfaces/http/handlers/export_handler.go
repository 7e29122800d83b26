package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/application/export"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/metrics"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
)

// ExportHandler serves the read API over a finished registry.
type ExportHandler struct {
	svc    export.Service
	logger logging.Logger
}

func NewExportHandler(svc export.Service, logger logging.Logger) *ExportHandler {
	return &ExportHandler{svc: svc, logger: logger.Named("export-api")}
}

// ListEntities handles GET /entities with pagination.
func (h *ExportHandler) ListEntities(c *gin.Context) {
	entities, err := h.svc.Registry(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	page, pageSize := parsePagination(c)
	c.JSON(http.StatusOK, gin.H{
		"entities":  paginate(entities, page, pageSize),
		"total":     len(entities),
		"page":      page,
		"page_size": pageSize,
	})
}

// GetEntity handles GET /entities/:id.
func (h *ExportHandler) GetEntity(c *gin.Context) {
	exp, err := h.svc.Entity(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// GetEvidence handles GET /entities/:id/evidence.
func (h *ExportHandler) GetEvidence(c *gin.Context) {
	rows, err := h.svc.Evidence(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evidence": rows, "total": len(rows)})
}

// GetTimeline handles GET /entities/:id/timeline.
func (h *ExportHandler) GetTimeline(c *gin.Context) {
	events, err := h.svc.Timeline(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// GetPack handles GET /entities/:id/pack.
func (h *ExportHandler) GetPack(c *gin.Context) {
	pack, err := h.svc.Pack(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

// ListMismatches handles GET /mismatches.
func (h *ExportHandler) ListMismatches(c *gin.Context) {
	reports, err := h.svc.Mismatches(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mismatches": reports, "total": len(reports)})
}

// ListPacks handles GET /packs.
func (h *ExportHandler) ListPacks(c *gin.Context) {
	packs, err := h.svc.Packs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packs": packs, "total": len(packs)})
}

// ArchivePacks handles POST /packs/archive: builds every eligible pack and
// stores it in the object archive.
func (h *ExportHandler) ArchivePacks(c *gin.Context) {
	locations, err := h.svc.ArchivePacks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("pack archive requested", logging.Int("archived", len(locations)))
	c.JSON(http.StatusOK, gin.H{"locations": locations, "archived": len(locations)})
}

// MetricsRequest optionally carries a labeled validation sample.
type MetricsRequest struct {
	Sample []metrics.LabeledPair `json:"sample,omitempty"`
}

// GetMetrics handles POST /metrics/report. The body is optional; without a
// labeled sample the report omits precision/recall/F1.
func (h *ExportHandler) GetMetrics(c *gin.Context) {
	var req MetricsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: string(errors.ErrCodeBadRequest), Message: "invalid request body: " + err.Error()})
			return
		}
	}

	report, err := h.svc.Metrics(c.Request.Context(), req.Sample)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
