package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/response"
)

// Recovery 将 panic 转换为 ErrPanic 响应, 堆栈只写日志.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			rid := GetRequestID(c.Request.Context())
			logger.Errorw("panic recovered",
				"panic", fmt.Sprint(r),
				"path", c.Request.URL.Path,
				"request_id", rid,
				"stack", string(debug.Stack()),
			)

			resp := response.Err(errors.ErrPanic).WithRequestID(rid)
			c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
		}()
		c.Next()
	}
}
