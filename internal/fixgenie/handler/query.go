package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/fixgenie/internal/fixgenie/biz"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
)

// QueryHandler serves the query and feedback endpoints.
type QueryHandler struct {
	service *biz.Service
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(service *biz.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

// QueryRequest is the query endpoint payload. The optional fields default to
// include_sources=true, max_incidents=3, confidence_threshold=0.3.
type QueryRequest struct {
	Query               string  `json:"query" binding:"required"`
	IncludeSources      bool    `json:"include_sources"`
	MaxIncidents        int     `json:"max_incidents" binding:"omitempty,min=1,max=50"`
	ConfidenceThreshold float64 `json:"confidence_threshold" binding:"omitempty,min=0,max=1"`
}

// Query handles POST /v1/query.
func (h *QueryHandler) Query(c *gin.Context) {
	// Absent JSON fields keep these wire defaults.
	req := QueryRequest{
		IncludeSources:      true,
		MaxIncidents:        3,
		ConfidenceThreshold: 0.3,
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errkind.Wrap(errkind.KindInput, "invalid request body", err))
		return
	}

	resp, err := h.service.QueryWithOptions(c.Request.Context(), req.Query, model.QueryOptions{
		IncludeSources:      req.IncludeSources,
		MaxIncidents:        req.MaxIncidents,
		ConfidenceThreshold: req.ConfidenceThreshold,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, resp)
}
