package handlers

import "github.com/gin-gonic/gin"

// Register mounts every endpoint on the router. The auth middleware guards
// the directory mutations; the rate limit middleware guards the signaling
// mutation endpoints. Either may be nil.
func (h *Handlers) Register(router *gin.Engine, auth, rateLimit gin.HandlerFunc) {
	if rateLimit == nil {
		rateLimit = func(c *gin.Context) { c.Next() }
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":          "ok",
			"presenceRooms":   h.Registry.Rooms(),
			"signalingRooms":  h.Relay.Rooms(),
			"directoryOnline": h.Directory != nil,
		})
	})

	router.GET("/presence", h.GetPresence)
	router.POST("/presence", rateLimit, h.PostPresence)
	router.GET("/signaling", h.GetSignaling)
	router.POST("/signaling", rateLimit, h.PostSignaling)

	api := router.Group("/api")
	{
		if auth != nil {
			api.POST("/rooms", auth, h.CreateRoom)
			api.DELETE("/rooms/:roomId", auth, h.DeleteRoom)
		} else {
			api.POST("/rooms", h.CreateRoom)
			api.DELETE("/rooms/:roomId", h.DeleteRoom)
		}
		api.GET("/rooms/:roomId", h.GetRoom)
	}

	ws := router.Group("/ws")
	{
		ws.GET("/call/:roomId", h.CallSocket)
	}
}
