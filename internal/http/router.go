// README: HTTP router registration for the operations dashboard API.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fulfillments/internal/http/handlers"
	"fulfillments/internal/http/middleware"
	"fulfillments/internal/infra"
)

type RouterDeps struct {
	Tasks    handlers.TaskLister
	Orders   handlers.OrderService
	Routes   handlers.RouteBuilder
	Verifier infra.TokenVerifier
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Log      *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api",
		middleware.Auth(deps.Verifier),
		middleware.RequirePermission(middleware.PermissionTasksAndOrder),
	)

	taskHandler := handlers.NewTaskHandler(deps.Tasks)
	api.GET("/tasks", taskHandler.List)

	orderHandler := handlers.NewOrderHandler(deps.Orders)
	api.GET("/transitions/allowed", orderHandler.Allowed)
	api.GET("/states/:state/next", orderHandler.Successors)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/transition", orderHandler.Transition)

	routeHandler := handlers.NewRouteHandler(deps.Routes)
	api.GET("/deliverable-orders", routeHandler.DeliverableOrders)

	return r
}
