package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/fixgenie/internal/fixgenie/corpus"
	"github.com/kart-io/fixgenie/internal/fixgenie/metrics"
)

// AdminHandler serves health, stats and metrics endpoints.
type AdminHandler struct {
	manager       *corpus.Manager
	embedderName  string
	generatorName string
}

// NewAdminHandler creates an admin handler. The provider names are surfaced
// on the stats endpoint.
func NewAdminHandler(manager *corpus.Manager, embedderName, generatorName string) *AdminHandler {
	return &AdminHandler{
		manager:       manager,
		embedderName:  embedderName,
		generatorName: generatorName,
	}
}

// Healthz handles GET /healthz.
func (h *AdminHandler) Healthz(c *gin.Context) {
	corpusCount, err := h.manager.Corpus().Count(c.Request.Context())
	status := "ok"
	if err != nil {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"corpus_count": corpusCount,
		"live_count":   h.manager.Lexical().Size(),
	})
}

// Stats handles GET /v1/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats := metrics.Get().Stats()

	corpusCount, _ := h.manager.Corpus().Count(c.Request.Context())
	vectorCount, _ := h.manager.Vectors().Count(c.Request.Context())
	stats["corpus"] = map[string]interface{}{
		"incidents":      corpusCount,
		"live_incidents": h.manager.Lexical().Size(),
		"vectors":        vectorCount,
	}
	stats["providers"] = map[string]interface{}{
		"embedding": h.embedderName,
		"generator": h.generatorName,
	}
	respondOK(c, stats)
}

// Metrics handles GET /metrics in Prometheus text format.
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.String(http.StatusOK, metrics.Get().Export("fixgenie", ""))
}
