package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/id"
)

// maxRequestIDLen 超长的上游请求 ID 会被替换.
const maxRequestIDLen = 128

// RequestID 复用上游 X-Request-ID, 没有时生成 ULID.
// 请求 ID 写入响应头, gin.Context 和 request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = id.NewULID()
		}

		c.Header(HeaderXRequestID, rid)
		c.Set(ContextKeyRequestID, rid)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), rid))

		c.Next()
	}
}
