// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evidencemed/evidence-gateway/pkg/types"
)

// NewRouter assembles the gin engine with CORS, request tagging and the
// API routes. The caller owns running it.
func NewRouter(cfg types.ServerConfig, svc Searcher, log *zap.SugaredLogger) *gin.Engine {
	if strings.EqualFold(cfg.Mode, "prod") || strings.EqualFold(cfg.Mode, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	if log != nil {
		router.Use(RequestLogger(log))
	}

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With", requestIDHeader},
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))

	handler := NewSearchHandler(svc, log)

	router.GET("/healthz", healthz)
	api := router.Group("/api")
	{
		api.POST("/pubmed/search", handler.Search)
	}

	return router
}
