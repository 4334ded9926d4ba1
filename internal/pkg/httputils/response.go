// Package httputils provides HTTP utility functions.
package httputils

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/middleware"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/response"
)

// WriteResponse writes the response to the client.
// It handles both success and error cases, ensuring consistent response format.
func WriteResponse(c *gin.Context, err error, data any) {
	rid := middleware.GetRequestID(c.Request.Context())

	if err != nil {
		errno := errors.FromError(err)
		if errno.HTTPStatus() >= 500 {
			logger.Errorw("request failed",
				"request_id", rid,
				"path", c.FullPath(),
				"code", errno.Code,
				"error", err.Error(),
			)
		}
		resp := response.Err(errno).WithRequestID(rid)
		c.JSON(resp.HTTPStatus(), resp)
		return
	}

	// data can be *response.Response (e.g. from response.Page) or raw data
	resp, ok := data.(*response.Response)
	if !ok {
		resp = response.Success(data)
	}
	resp.WithRequestID(rid)
	c.JSON(resp.HTTPStatus(), resp)
}

// WriteError is WriteResponse for the error path followed by Abort.
func WriteError(c *gin.Context, err error) {
	WriteResponse(c, err, nil)
	c.Abort()
}
