package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mysbind/userhub/internal/config"
)

// CORS allows any origin when none is configured.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    []string{HeaderRequestID},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(conf.AllowOrigins) == 0 {
		conf.AllowOrigins = nil
		conf.AllowAllOrigins = true
		conf.AllowCredentials = false
	}
	if len(conf.AllowMethods) == 0 {
		conf.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(conf.AllowHeaders) == 0 {
		conf.AllowHeaders = []string{"Authorization", "Content-Type", HeaderRequestID}
	}
	return cors.New(conf)
}
