package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BluePanda-io/ai-agent-apis/internal/pkg/httputils"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
)

const prometheusContentType = "text/plain; version=0.0.4; charset=utf-8"

// MetricsHandler 暴露业务指标.
type MetricsHandler struct {
	metrics *metrics.TicketMetrics
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(m *metrics.TicketMetrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// Prometheus handles GET /metrics.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	c.Data(http.StatusOK, prometheusContentType, []byte(h.metrics.Export()))
}

// Stats handles GET /v1/stats.
func (h *MetricsHandler) Stats(c *gin.Context) {
	httputils.WriteResponse(c, nil, h.metrics.Stats())
}
