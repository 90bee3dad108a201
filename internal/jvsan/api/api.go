// Package api 提供 jvsan 的 HTTP 接口
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/jvsan/internal/jvsan/metrics"
	"github.com/jimyag/jvsan/pkg/ginx"
	"github.com/rs/zerolog"
)

type API struct {
	engine *gin.Engine
	server *http.Server

	cluster *Cluster
}

func New(address string, logger zerolog.Logger, provisionService ProvisionServiceInterface) (*API, error) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.ContextWithFallback = true
	engine.Use(gin.Recovery(), ginx.RequestLogger(logger))

	api := &API{
		engine:  engine,
		cluster: NewCluster(provisionService),
	}
	api.cluster.RegisterRoutes(engine.Group("/api"))
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api.server = &http.Server{
		Addr:    address,
		Handler: engine,
	}
	return api, nil
}

// Handler 返回 HTTP 处理器
func (a *API) Handler() http.Handler {
	return a.engine
}

func (a *API) Run(ctx context.Context) error {
	zerolog.Ctx(ctx).Info().Str("address", a.server.Addr).Msg("API server listening")
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Name 实现 grace.Grace 接口
func (a *API) Name() string {
	return "jvsan API"
}
