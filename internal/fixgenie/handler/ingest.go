package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/fixgenie/internal/fixgenie/corpus"
	"github.com/kart-io/fixgenie/internal/fixgenie/ingest"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
)

// IngestHandler serves corpus mutation endpoints.
type IngestHandler struct {
	pipeline *ingest.Pipeline
	manager  *corpus.Manager
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(pipeline *ingest.Pipeline, manager *corpus.Manager) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, manager: manager}
}

// IngestRequest is a batch of raw incident records.
type IngestRequest struct {
	Incidents []*model.Incident `json:"incidents" binding:"required"`
}

// Ingest handles POST /v1/ingest. Invalid records are quarantined and
// reported; the rest of the batch is published.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errkind.Wrap(errkind.KindInput, "invalid request body", err))
		return
	}
	if len(req.Incidents) == 0 {
		respondError(c, errkind.New(errkind.KindInput, "incidents must not be empty"))
		return
	}

	report, err := h.pipeline.Run(c.Request.Context(), req.Incidents)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

// DeleteIncident handles DELETE /v1/incidents/:id.
func (h *IngestHandler) DeleteIncident(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respondError(c, errkind.New(errkind.KindInput, "incident id is required"))
		return
	}
	if err := h.manager.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": model.NormalizeID(id)})
}

// GetIncident handles GET /v1/incidents/:id.
func (h *IngestHandler) GetIncident(c *gin.Context) {
	id := c.Param("id")
	inc, err := h.manager.Corpus().Get(c.Request.Context(), model.NormalizeID(id))
	if err != nil {
		respondError(c, err)
		return
	}
	if inc == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    http.StatusNotFound,
			Message: "incident not found",
		})
		return
	}
	respondOK(c, inc)
}

// Audit handles POST /v1/audit, running one consistency sweep on demand.
func (h *IngestHandler) Audit(c *gin.Context) {
	report, err := h.manager.Audit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}
