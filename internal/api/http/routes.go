package http

import "github.com/gin-gonic/gin"

// AckRoute is the worker acknowledgement route, exempt from rate limiting
const AckRoute = "/abilities/:token/done"

// Register mounts the controller routes on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)

	abilities := r.Group("/abilities")
	{
		abilities.POST("/launcher", h.StartLauncher)
		abilities.POST("/start", h.StartAbility)
		abilities.POST("/force-stop", h.ForceStop)
		abilities.POST("/clean-data", h.SetCleanData)
		abilities.GET("/top", h.TopAbility)
		abilities.GET("", h.Records)
		abilities.POST("/:token/terminate", h.TerminateAbility)
		abilities.POST("/:token/force-stop", h.ForceStopBundle)
		abilities.POST("/:token/done", h.LifecycleDone)
	}

	r.GET("/missions", h.Missions)
	r.GET("/missions/:id", h.Mission)
	r.GET("/bundles", h.Bundles)
}
