package service

import (
	"github.com/gin-gonic/gin"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/app/response"
	"github.com/contexor/contexor/cmd/service/handler"
	"github.com/contexor/contexor/cmd/service/middleware"
)

func serve(core *core.Core) error {
	httpSrv := &handler.HttpSrv{
		Core:   core,
		Engine: core.HttpEngine(),
	}
	setupHttpRouter(httpSrv)

	return core.HttpEngine().Run(core.Cfg().Addr)
}

func setupHttpRouter(s *handler.HttpSrv) {
	s.Engine.Use(gin.Recovery())
	s.Engine.GET("/healthz", s.Healthz)
	s.Engine.GET("/metrics", s.Core.Metrics().Registry().ExportHandler())

	s.Engine.Use(middleware.I18n(s.Core), response.NewResponse())
	s.Engine.Use(middleware.Cors, middleware.AcceptLanguage())
	apiV1 := s.Engine.Group("/api/v1")
	{
		authed := apiV1.Group("")
		authed.Use(middleware.RequireUser)

		authed.POST("/contents/:contentid/generations", s.SubmitGeneration)

		job := authed.Group("/jobs")
		{
			job.GET("/:jobid", s.GetJob)
			job.DELETE("/:jobid", s.CancelJob)
		}

		authed.GET("/budget/:scope/:scopeid", s.CheckBudget)
		authed.GET("/usage", s.GetUsageSummary)
	}
}
