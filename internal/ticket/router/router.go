// Package router 注册工单服务的 HTTP 路由.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/BluePanda-io/ai-agent-apis/internal/pkg/httputils"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/handler"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
)

// Register mounts every route on engine.
func Register(engine *gin.Engine, tickets *handler.TicketHandler, health *handler.HealthHandler, m *handler.MetricsHandler) {
	engine.GET("/healthz", health.Healthz)
	engine.GET("/metrics", m.Prometheus)
	engine.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})

	v1 := engine.Group("/v1")
	{
		t := v1.Group("/tickets")
		t.POST("", tickets.Create)
		t.GET("", tickets.List)
		t.GET("/:id", tickets.Get)
		t.PUT("/:id", tickets.Update)
		t.PATCH("/:id", tickets.UpdateStatus)
		t.DELETE("/:id", tickets.Delete)
		t.GET("/:id/versions", tickets.History)

		v1.GET("/search", tickets.Search)

		c := v1.Group("/consistency")
		c.GET("/events", tickets.Events)
		c.POST("/reconcile", tickets.Reconcile)

		v1.POST("/index/rebuild", tickets.Rebuild)
		v1.DELETE("/index", tickets.DeleteAll)

		v1.GET("/stats", m.Stats)
	}

	engine.NoRoute(func(c *gin.Context) {
		httputils.WriteError(c, errors.ErrRouteNotFound)
	})
}
