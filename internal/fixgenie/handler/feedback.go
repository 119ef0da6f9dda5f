package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
)

// FeedbackRequest is the feedback endpoint payload.
type FeedbackRequest struct {
	Query        string `json:"query" binding:"required"`
	ResultID     string `json:"result_id" binding:"required"`
	Rating       int    `json:"rating" binding:"required"`
	Helpful      bool   `json:"helpful"`
	FeedbackText string `json:"feedback_text"`
}

// SubmitFeedback handles POST /v1/feedback.
func (h *QueryHandler) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errkind.Wrap(errkind.KindInput, "invalid request body", err))
		return
	}

	fb := &model.Feedback{
		Query:        req.Query,
		ResultID:     req.ResultID,
		Rating:       req.Rating,
		Helpful:      req.Helpful,
		FeedbackText: req.FeedbackText,
	}
	if err := h.service.SubmitFeedback(c.Request.Context(), fb); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"feedback_id": fb.ID})
}

// ListFeedback handles GET /v1/feedback.
func (h *QueryHandler) ListFeedback(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := h.service.RecentFeedback(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, records)
}

// ListSearches handles GET /v1/searches.
func (h *QueryHandler) ListSearches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.service.RecentSearches(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, entries)
}
