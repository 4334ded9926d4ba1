package model

import "github.com/BluePanda-io/ai-agent-apis/pkg/utils/json"

// CommentInput 请求中的评论, 时间由服务端生成.
type CommentInput struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

// CreateTicketRequest 创建工单请求. 未知字段进入 Extensions.
type CreateTicketRequest struct {
	Identifier  *string        `json:"identifier,omitempty"`
	LinearID    *string        `json:"linear_id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      Status         `json:"status,omitempty"`
	Priority    Priority       `json:"priority,omitempty"`
	Comments    []CommentInput `json:"comments,omitempty"`
	Extensions  Extensions     `json:"-"`
}

type createAlias CreateTicketRequest

func (r *CreateTicketRequest) UnmarshalJSON(data []byte) error {
	var a createAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	ext, err := collectExtensions(data)
	if err != nil {
		return err
	}
	*r = CreateTicketRequest(a)
	r.Extensions = ext
	return nil
}

// UpdateTicketRequest 更新工单请求. nil 字段保持不变; 评论追加; 扩展字段按 key 合并.
// identifier 或 linear_id 传空字符串表示清除.
type UpdateTicketRequest struct {
	Identifier  *string        `json:"identifier,omitempty"`
	LinearID    *string        `json:"linear_id,omitempty"`
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *Status        `json:"status,omitempty"`
	Priority    *Priority      `json:"priority,omitempty"`
	Comments    []CommentInput `json:"comments,omitempty"`
	Extensions  Extensions     `json:"-"`
}

type updateAlias UpdateTicketRequest

func (r *UpdateTicketRequest) UnmarshalJSON(data []byte) error {
	var a updateAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	ext, err := collectExtensions(data)
	if err != nil {
		return err
	}
	*r = UpdateTicketRequest(a)
	r.Extensions = ext
	return nil
}

// UpdateStatusRequest PATCH 请求, 仅修改状态.
type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=open in_progress closed"`
}

// ListFilter 列表查询条件.
type ListFilter struct {
	Status     Status   `form:"status" binding:"omitempty,oneof=open in_progress closed"`
	Priority   Priority `form:"priority" binding:"omitempty,oneof=low medium high"`
	Identifier string   `form:"identifier"`
	LinearID   string   `form:"linear_id"`
	Offset     int      `form:"offset" binding:"omitempty,min=0"`
	Limit      int      `form:"limit" binding:"omitempty,min=1,max=200"`
}

// SearchQuery 搜索请求参数.
type SearchQuery struct {
	Query string `form:"query"`
	TopK  int    `form:"top_k" binding:"omitempty,min=1"`
}
