package biz

import (
	"context"
	"time"
)

// LedgerEvent 账本事件，提交成功后发送到 RocketMQ（尽力而为，不影响已提交的事务）
type LedgerEvent struct {
	Type           string                 `json:"type"` // ledger_entry / debit_rejected
	EntryID        string                 `json:"entry_id,omitempty"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id,omitempty"`
	ArticleID      string                 `json:"article_id,omitempty"`
	ActionType     string                 `json:"action_type"`
	Platform       string                 `json:"platform,omitempty"`
	CreditsDelta   int64                  `json:"credits_delta"`
	BalanceAfter   int64                  `json:"balance_after"`
	Required       int64                  `json:"required,omitempty"`
	Available      int64                  `json:"available,omitempty"`
	RequestID      string                 `json:"request_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// GrantCommand 充值指令（例如支付完成后由上游发送），RequestID 作为幂等键
type GrantCommand struct {
	OrganizationID string                 `json:"organization_id"`
	Amount         int64                  `json:"amount"`
	GrantedBy      string                 `json:"granted_by,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	RequestID      string                 `json:"request_id,omitempty"`
}

// LedgerEventPublisher 账本事件发布接口
type LedgerEventPublisher interface {
	Publish(ctx context.Context, event *LedgerEvent) error
}
