package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mysbind/userhub/internal/config"
	"mysbind/userhub/internal/handler/middleware"
	jwtpkg "mysbind/userhub/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	noteUserHandler *NoteUserHandler,
	adminHandler *AdminHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Per-user routes
	me := r.Group("/api/v1/me")
	me.Use(middleware.JWTAuth(jwtManager))
	{
		me.GET("/uids", noteUserHandler.ListUids)
		me.POST("/uids", noteUserHandler.RegisterUid)
		me.PUT("/uids/active", noteUserHandler.SetActiveUid)
		me.DELETE("/uids/:uid", noteUserHandler.UnregisterUid)

		me.POST("/cookies", noteUserHandler.BindCookie)
		me.POST("/cookies/check", noteUserHandler.CheckCookies)
		me.DELETE("/cookies/:ltuid", noteUserHandler.UnbindCookie)
	}

	// Admin routes (JWT + admin check)
	if adminHandler != nil {
		admin := r.Group("/api/v1/admin")
		admin.Use(middleware.JWTAuth(jwtManager))
		admin.Use(middleware.AdminAuth(cfg.Admin.UserKeys))
		{
			admin.POST("/sweep", adminHandler.Sweep)
		}
	}

	return r
}
