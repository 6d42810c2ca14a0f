package v1

import "context"

// GetBalanceRequest 查询余额
type GetBalanceRequest struct {
	OrganizationId string `json:"organization_id"`
}

// GetBalanceReply 余额（可能来自缓存）
type GetBalanceReply struct {
	OrganizationId string `json:"organization_id"`
	Balance        int64  `json:"balance"`
}

// CheckCreditsRequest 预检
type CheckCreditsRequest struct {
	OrganizationId  string `json:"organization_id"`
	ActionType      string `json:"action_type"`
	Platform        string `json:"platform"`
	RequiredCredits int64  `json:"required_credits"`
}

// CheckCreditsReply 预检结果
type CheckCreditsReply struct {
	Sufficient bool  `json:"sufficient"`
	Balance    int64 `json:"balance"`
	Required   int64 `json:"required"`
}

// DebitRequest 扣费
type DebitRequest struct {
	OrganizationId  string                 `json:"organization_id"`
	UserId          string                 `json:"user_id"`
	ActionType      string                 `json:"action_type"`
	Platform        string                 `json:"platform"`
	RequiredCredits int64                  `json:"required_credits"`
	ArticleId       string                 `json:"article_id"`
	RequestId       string                 `json:"request_id"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// GrantRequest 充值
type GrantRequest struct {
	OrganizationId string                 `json:"organization_id"`
	Amount         int64                  `json:"amount"`
	Reason         string                 `json:"reason"`
	RequestId      string                 `json:"request_id"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// MutationReply 扣费 / 充值结果
type MutationReply struct {
	LedgerEntryId string `json:"ledger_entry_id"`
	CreditsDelta  int64  `json:"credits_delta"`
	BalanceAfter  int64  `json:"balance_after"`
	Replayed      bool   `json:"replayed"`
}

// ListLedgerRequest 分页查询账本，日期格式 2006-01-02 或 RFC3339
type ListLedgerRequest struct {
	OrganizationId string `json:"organization_id"`
	Page           int32  `json:"page"`
	PageSize       int32  `json:"page_size"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Platform       string `json:"platform"`
	ActionType     string `json:"action_type"`
}

// LedgerEntry 账本记录
type LedgerEntry struct {
	Id           string                 `json:"id"`
	UserId       string                 `json:"user_id,omitempty"`
	ArticleId    string                 `json:"article_id,omitempty"`
	ActionType   string                 `json:"action_type"`
	Platform     string                 `json:"platform,omitempty"`
	CreditsDelta int64                  `json:"credits_delta"`
	BalanceAfter int64                  `json:"balance_after"`
	RequestId    string                 `json:"request_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    string                 `json:"created_at"`
}

// ListLedgerReply 账本分页
type ListLedgerReply struct {
	Entries    []*LedgerEntry `json:"entries"`
	Total      int64          `json:"total"`
	Page       int32          `json:"page"`
	PageSize   int32          `json:"page_size"`
	TotalPages int32          `json:"total_pages"`
}

// Pricing 价格
type Pricing struct {
	ActionType      string `json:"action_type"`
	Platform        string `json:"platform"`
	CreditsRequired int64  `json:"credits_required"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// ListPricingRequest 列出价格表
type ListPricingRequest struct{}

// ListPricingReply 价格表
type ListPricingReply struct {
	Items []*Pricing `json:"items"`
}

// UpsertPricingRequest 新增或修改价格
type UpsertPricingRequest struct {
	ActionType      string `json:"action_type"`
	Platform        string `json:"platform"`
	CreditsRequired int64  `json:"credits_required"`
}

// ReconcileRequest 单组织对账
type ReconcileRequest struct {
	OrganizationId string `json:"organization_id"`
}

// ReconcileReply 对账结果
type ReconcileReply struct {
	OrganizationId string `json:"organization_id"`
	Balance        int64  `json:"balance"`
	LedgerSum      int64  `json:"ledger_sum"`
	Consistent     bool   `json:"consistent"`
}

// CreditServiceHTTPServer 积分服务 HTTP 接口
type CreditServiceHTTPServer interface {
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceReply, error)
	CheckCredits(context.Context, *CheckCreditsRequest) (*CheckCreditsReply, error)
	Debit(context.Context, *DebitRequest) (*MutationReply, error)
	Grant(context.Context, *GrantRequest) (*MutationReply, error)
	ListLedger(context.Context, *ListLedgerRequest) (*ListLedgerReply, error)
	ListPricing(context.Context, *ListPricingRequest) (*ListPricingReply, error)
	UpsertPricing(context.Context, *UpsertPricingRequest) (*Pricing, error)
	Reconcile(context.Context, *ReconcileRequest) (*ReconcileReply, error)
}
