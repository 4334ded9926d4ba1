// Package handler 工单服务的 HTTP 处理函数.
package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/BluePanda-io/ai-agent-apis/internal/pkg/httputils"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/biz"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/model"
	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/middleware"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/response"
)

// HeaderChangedBy 记录修改人, 写入版本历史.
const HeaderChangedBy = "X-Changed-By"

// TicketHandler handles ticket, search and index administration requests.
type TicketHandler struct {
	coord    *biz.Coordinator
	searcher *biz.Searcher
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(coord *biz.Coordinator, searcher *biz.Searcher) *TicketHandler {
	return &TicketHandler{coord: coord, searcher: searcher}
}

// Create handles POST /v1/tickets.
func (h *TicketHandler) Create(c *gin.Context) {
	var req model.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}

	t, err := h.coord.Create(c.Request.Context(), &req)
	h.logOutcome(c, "create", "", err)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, response.Created(t))
}

// List handles GET /v1/tickets.
func (h *TicketHandler) List(c *gin.Context) {
	var f model.ListFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage(err.Error()), nil)
		return
	}
	f = biz.NormalizeListFilter(f)

	items, total, err := h.coord.List(c.Request.Context(), f)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, response.Page(items, total, f.Offset, f.Limit))
}

// Get handles GET /v1/tickets/:id. The id may be a primary key, an identifier or a linear_id.
func (h *TicketHandler) Get(c *gin.Context) {
	t, err := h.coord.Get(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, t)
}

// Update handles PUT /v1/tickets/:id.
func (h *TicketHandler) Update(c *gin.Context) {
	var req model.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}

	token := c.Param("id")
	t, err := h.coord.Update(c.Request.Context(), token, &req, changedBy(c))
	h.logOutcome(c, "update", token, err)
	httputils.WriteResponse(c, err, t)
}

// UpdateStatus handles PATCH /v1/tickets/:id.
func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrTicketInvalid.WithMessage(err.Error()), nil)
		return
	}

	token := c.Param("id")
	t, err := h.coord.UpdateStatus(c.Request.Context(), token, req.Status, changedBy(c))
	h.logOutcome(c, "update_status", token, err)
	httputils.WriteResponse(c, err, t)
}

// Delete handles DELETE /v1/tickets/:id.
func (h *TicketHandler) Delete(c *gin.Context) {
	token := c.Param("id")
	t, err := h.coord.Delete(c.Request.Context(), token)
	h.logOutcome(c, "delete", token, err)
	httputils.WriteResponse(c, err, t)
}

// History handles GET /v1/tickets/:id/versions.
func (h *TicketHandler) History(c *gin.Context) {
	versions, err := h.coord.History(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, versions)
}

// Search handles GET /v1/search.
func (h *TicketHandler) Search(c *gin.Context) {
	var q model.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage(err.Error()), nil)
		return
	}

	results, err := h.searcher.Search(c.Request.Context(), q.Query, q.TopK)
	httputils.WriteResponse(c, err, results)
}

// Events handles GET /v1/consistency/events.
func (h *TicketHandler) Events(c *gin.Context) {
	limit, err := intQuery(c, "limit", 100)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	events, err := h.coord.Events(c.Request.Context(), model.EventStatus(c.Query("status")), limit)
	httputils.WriteResponse(c, err, events)
}

// Reconcile handles POST /v1/consistency/reconcile.
func (h *TicketHandler) Reconcile(c *gin.Context) {
	limit, err := intQuery(c, "limit", biz.DefaultReconcileBatch)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	report, err := h.coord.Reconcile(c.Request.Context(), limit)
	httputils.WriteResponse(c, err, report)
}

// Rebuild handles POST /v1/index/rebuild.
func (h *TicketHandler) Rebuild(c *gin.Context) {
	purge, err := strconv.ParseBool(c.DefaultQuery("purge", "false"))
	if err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("purge must be a boolean"), nil)
		return
	}

	report, err := h.coord.Rebuild(c.Request.Context(), purge)
	httputils.WriteResponse(c, err, report)
}

// DeleteAll handles DELETE /v1/index.
func (h *TicketHandler) DeleteAll(c *gin.Context) {
	err := h.coord.DeleteAll(c.Request.Context())
	httputils.WriteResponse(c, err, nil)
}

func (h *TicketHandler) logOutcome(c *gin.Context, op, token string, err error) {
	kvs := []any{
		"op", op,
		"outcome", biz.OutcomeOf(err),
		"request_id", middleware.GetRequestID(c.Request.Context()),
	}
	if token != "" {
		kvs = append(kvs, "token", token)
	}
	if err != nil {
		kvs = append(kvs, "error", err.Error())
	}
	logger.Infow("ticket mutation", kvs...)
}

func changedBy(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(HeaderChangedBy)); v != "" {
		return v
	}
	return biz.DefaultChangedBy
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.ErrInvalidParam.WithMessagef("%s must be a non-negative integer", key)
	}
	return n, nil
}
