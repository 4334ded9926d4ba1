package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Ticket 服务错误码 (服务代码 21)
var (
	// 请求参数错误 (类别 01)
	ErrTicketInvalid           = Register(New(MakeCode(ServiceTicket, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid ticket", "工单无效"))
	ErrTicketInvalidIdentifier = Register(New(MakeCode(ServiceTicket, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Invalid ticket identifier", "工单标识格式无效"))
	ErrTicketInvalidQuery      = Register(New(MakeCode(ServiceTicket, CategoryRequest, 3), http.StatusBadRequest, codes.InvalidArgument, "Search query is required", "搜索关键词不能为空"))

	// 资源错误 (类别 04)
	ErrTicketNotFound = Register(New(MakeCode(ServiceTicket, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Ticket not found", "工单不存在"))

	// 冲突 (类别 05)
	ErrTicketDuplicateIdentifier = Register(New(MakeCode(ServiceTicket, CategoryConflict, 1), http.StatusConflict, codes.AlreadyExists, "Ticket identifier already exists", "工单标识已存在"))

	// 存储错误 (类别 08)
	ErrTicketStore = Register(New(MakeCode(ServiceTicket, CategoryDatabase, 1), http.StatusInternalServerError, codes.Internal, "Ticket store failure", "工单存储失败"))

	// 上游依赖 (类别 10)
	ErrTicketUpstreamUnavailable = Register(New(MakeCode(ServiceTicket, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.Unavailable, "Embedding service unavailable", "向量化服务不可用"))
	ErrTicketIndexUnavailable    = Register(New(MakeCode(ServiceTicket, CategoryNetwork, 2), http.StatusServiceUnavailable, codes.Unavailable, "Vector index unavailable", "向量索引不可用"))

	// 索引与存储未同步, 仅作为一致性事件的原因记录, 不会返回给调用方.
	ErrTicketPartialConsistency = Register(New(MakeCode(ServiceTicket, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Search index out of sync with ticket store", "搜索索引与工单存储不一致"))
)
