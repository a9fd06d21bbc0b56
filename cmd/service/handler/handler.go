package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contexor/contexor/app/core"
	v1 "github.com/contexor/contexor/app/logic/v1"
)

// HttpSrv HTTP服务结构
type HttpSrv struct {
	Core   *core.Core
	Engine *gin.Engine
}

func (s *HttpSrv) Healthz(c *gin.Context) {
	status := gin.H{
		"ai":    s.Core.Srv().GetAIStatus(),
		"queue": s.Core.Queue() != nil,
	}
	if err := s.Core.Store().GetMaster().PingContext(c); err != nil {
		status["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status["database"] = "ok"
	c.JSON(http.StatusOK, status)
}

func currentUser(c *gin.Context) string {
	user, _ := v1.InjectUser(c)
	return user
}
