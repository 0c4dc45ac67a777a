package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stageboard/stageboard/internal/state"
)

type handlers struct {
	store   *state.Store
	baseURL string
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	h := &handlers{store: opts.Store, baseURL: opts.BaseURL}

	router.GET("/healthz", handleHealth(opts.Store))
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout)
	api.GET("/auth/me", h.me)

	authed := api.Group("", h.requireUser)
	authed.GET("/users", h.listUsers)
	authed.GET("/stats", h.stats)
	authed.GET("/recent", h.recent)
	authed.GET("/projects", h.listProjects)
	authed.GET("/projects/:id", h.getProject)
	authed.GET("/projects/:id/share", h.shareProject)
	authed.GET("/projects/:id/stages", h.listStages)
	authed.GET("/stages/:id/tasks", h.listTasks)
	if opts.Events != nil {
		authed.GET("/events", handleSSE(opts.Events))
	}

	manage := authed.Group("", h.requireManager)
	manage.POST("/projects", h.createProject)
	manage.PATCH("/projects/:id", h.updateProject)
	manage.POST("/projects/:id/cancel", h.cancelProject)
	manage.DELETE("/projects/:id", h.deleteProject)
	manage.POST("/projects/:id/stages", h.createStage)
	manage.PATCH("/stages/:id", h.updateStage)
	manage.DELETE("/stages/:id", h.deleteStage)
	manage.POST("/stages/:id/tasks", h.createTask)
	manage.PATCH("/tasks/:id", h.updateTask)
	manage.POST("/tasks/:id/toggle", h.toggleTask)
	manage.DELETE("/tasks/:id", h.deleteTask)
}

func handleHealth(s *state.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		if s.Loading() {
			status = "loading"
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}
