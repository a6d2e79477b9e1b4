package handler

import (
	"github.com/gin-gonic/gin"
)

// Register 注册 API 路由
func Register(api *gin.RouterGroup, sessions *SessionHandler, cutouts *CutoutHandler) {
	api.POST("/sessions", sessions.Create)
	api.GET("/sessions/:id", sessions.Info)
	api.DELETE("/sessions/:id", sessions.Delete)
	api.PUT("/sessions/:id/photo", sessions.ReplacePhoto)
	api.POST("/sessions/:id/stroke/begin", sessions.BeginStroke)
	api.POST("/sessions/:id/stroke/points", sessions.AppendPoints)
	api.POST("/sessions/:id/stroke/end", sessions.EndStroke)
	api.POST("/sessions/:id/cut", sessions.Cut)
	api.DELETE("/sessions/:id/target", sessions.ClearTarget)
	api.GET("/sessions/:id/result", sessions.Result)
	api.GET("/sessions/:id/overlay", sessions.Overlay)

	api.GET("/cutouts/:key", cutouts.Cutout)
	api.GET("/cuts/:key", cutouts.CutResult)
}
