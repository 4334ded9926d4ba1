package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service, category, sequence int
		expected                    int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1001},
		{21, 4, 1, 2104001},
		{21, 10, 2, 2110002},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.service, tt.category, tt.sequence), func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeCode(tt.service, tt.category, tt.sequence))
			s, c, q := ParseCode(tt.expected)
			assert.Equal(t, []int{tt.service, tt.category, tt.sequence}, []int{s, c, q})
		})
	}
}

func TestErrnoWrapping(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrTicketStore.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrTicketStore))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrTicketNotFound))
	assert.Contains(t, err.Error(), "connection refused")

	// 原始错误码不被修改
	assert.Nil(t, ErrTicketStore.Unwrap())
}

func TestErrnoThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("resolve: %w", ErrTicketNotFound.WithMessage("ticket \"ABC-1\" not found"))

	assert.True(t, stderrors.Is(err, ErrTicketNotFound))
	assert.True(t, IsCode(err, ErrTicketNotFound.Code))
	assert.Equal(t, ErrTicketNotFound.Code, GetCode(err))
	assert.Equal(t, "ticket \"ABC-1\" not found", FromError(err).MessageEN)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	e := FromError(stderrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.Equal(t, -1, GetCode(stderrors.New("boom")))
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusConflict, ErrTicketDuplicateIdentifier.HTTPStatus())
	assert.Equal(t, codes.AlreadyExists, ErrTicketDuplicateIdentifier.GRPCStatus())
	assert.Equal(t, http.StatusServiceUnavailable, ErrTicketUpstreamUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, (&Errno{Code: 1}).HTTPStatus())
	assert.Equal(t, codes.Internal, (&Errno{Code: 1}).GRPCStatus())

	assert.True(t, IsClientError(ErrTicketNotFound.Code))
	assert.False(t, IsClientError(ErrTicketStore.Code))
}

func TestMessageLang(t *testing.T) {
	assert.Equal(t, "工单不存在", ErrTicketNotFound.Message("zh-CN"))
	assert.Equal(t, "Ticket not found", ErrTicketNotFound.Message("en"))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrTicketNotFound.Code, http.StatusNotFound, codes.NotFound, "dup", "重复"))
	})

	got, ok := Lookup(ErrTicketNotFound.Code)
	assert.True(t, ok)
	assert.Same(t, ErrTicketNotFound, got)
}

func TestFormatVerbose(t *testing.T) {
	s := fmt.Sprintf("%+v", ErrTicketStore.WithCause(stderrors.New("timeout")))
	assert.Contains(t, s, "HTTP 500")
	assert.Contains(t, s, "caused by: timeout")
}
