package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/contexor/contexor/app/core"
	v1 "github.com/contexor/contexor/app/logic/v1"
	"github.com/contexor/contexor/app/response"
	"github.com/contexor/contexor/pkg/errors"
	"github.com/contexor/contexor/pkg/i18n"
	"github.com/contexor/contexor/pkg/utils"
)

const USER_HEADER_KEY = "X-User-Id"

func I18n(core *core.Core) gin.HandlerFunc {
	return response.ProvideResponseLocalizer(core.Localizer())
}

// AcceptLanguage 目前服务端支持 en: English, fa: فارسی
func AcceptLanguage() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(v1.LANGUAGE_KEY, i18n.DEFAULT_LANG)
		for _, l := range utils.ParseAcceptLanguage(ctx.Request.Header.Get("Accept-Language")) {
			tag := strings.ToLower(strings.SplitN(l.Tag, "-", 2)[0])
			if i18n.ALLOW_LANG[tag] {
				ctx.Set(v1.LANGUAGE_KEY, tag)
				return
			}
		}
	}
}

// RequireUser 身份由上游网关认证后通过请求头传入
func RequireUser(ctx *gin.Context) {
	user := ctx.GetHeader(USER_HEADER_KEY)
	if user == "" {
		response.APIError(ctx, errors.New("middleware.RequireUser", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
		return
	}
	ctx.Set(v1.USER_KEY, user)
}

func Cors(c *gin.Context) {
	method := c.Request.Method
	origin := c.Request.Header.Get("Origin")
	if origin != "" {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Accept-Language, "+USER_HEADER_KEY)
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type, X-Request-Id")
	}
	if method == "OPTIONS" {
		c.AbortWithStatus(http.StatusNoContent)
	}
	c.Next()
}
