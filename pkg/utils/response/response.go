// Package response 定义 HTTP 接口统一的响应结构.
package response

import (
	"net/http"
	"time"

	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
)

// Response is the envelope written for every API call.
type Response struct {
	Code      int    `json:"code"`
	HTTPCode  int    `json:"http_code,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PageData wraps an offset/limit page.
type PageData struct {
	List   any   `json:"list"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

func Success(data any) *Response {
	return &Response{
		Code:      0,
		HTTPCode:  http.StatusOK,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Created is Success with 201.
func Created(data any) *Response {
	r := Success(data)
	r.HTTPCode = http.StatusCreated
	return r
}

// Err builds an error envelope. The cause is never exposed to clients.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:      e.Code,
		HTTPCode:  e.HTTPStatus(),
		Message:   e.MessageEN,
		Timestamp: time.Now().UnixMilli(),
	}
}

func Page(list any, total int64, offset, limit int) *Response {
	return Success(&PageData{List: list, Total: total, Offset: offset, Limit: limit})
}

func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus resolves the status from HTTPCode, the registry, then the code category.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
