package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/triage-service/api"
	"github.com/psds-microservice/triage-service/internal/handler"
	"github.com/psds-microservice/triage-service/internal/logging"
	"github.com/psds-microservice/triage-service/internal/metrics"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Handlers struct {
	Ticket    *handler.TicketHandler
	Dashboard *handler.DashboardHandler
	Events    *handler.EventsHandler
	Admin     *handler.AdminHandler
	Image     *handler.ImageHandler
	Ready     gin.HandlerFunc
}

func New(h Handlers, logger *slog.Logger) http.Handler {
	metrics.Register()

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger), metrics.Middleware())
	r.GET(paths.PathHealth, handler.Health)
	r.GET(paths.PathReady, h.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/tickets", h.Ticket.List)
		v1.GET("/tickets/:id", h.Ticket.Get)
		v1.GET("/tickets/:id/history", h.Ticket.History)
		v1.PATCH("/tickets/:id/status", h.Ticket.SetStatus)
		v1.PATCH("/tickets/:id/priority", h.Ticket.SetPriority)
		v1.DELETE("/tickets/:id", h.Ticket.Delete)
		v1.POST("/tickets/:id/move", h.Ticket.Move)
		v1.POST("/tickets/:id/reply", h.Ticket.Reply)

		v1.GET("/images/:ref", h.Image.Get)

		v1.GET("/map", h.Dashboard.Map)
		v1.GET("/analytics", h.Dashboard.Analytics)
		v1.GET("/catalog", h.Dashboard.Catalog)
		v1.GET("/events", h.Events.Stream)

		admin := v1.Group("/admin")
		admin.GET("/state", h.Admin.State)
		admin.POST("/connect", h.Admin.Connect)
		admin.POST("/seed", h.Admin.Seed)
		admin.POST("/clear", h.Admin.Clear)
		admin.POST("/simulate", h.Admin.Simulate)
		admin.GET("/bot-url", h.Admin.GetBotURL)
		admin.PUT("/bot-url", h.Admin.PutBotURL)
		admin.GET("/bot/ping", h.Admin.PingBot)
	}

	return r
}
