package constants

import "time"

// Redis Key 前缀常量
const (
	// RedisKeyBalance 余额缓存 key 前缀
	RedisKeyBalance = "credit:balance:"
	// RedisKeyBalanceLock 组织余额锁 key 前缀
	RedisKeyBalanceLock = "credit:lock:"
)

// 缓存默认值
const (
	// DefaultBalanceCacheTTL 余额缓存默认过期时间
	DefaultBalanceCacheTTL = 5 * time.Minute
	// DefaultPricingCacheTTL 价格缓存默认过期时间
	DefaultPricingCacheTTL = time.Minute
	// CacheWriteTimeout 缓存写入超时，避免阻塞主流程
	CacheWriteTimeout = time.Second
)

// 锁默认值
const (
	LockProviderRedsync = "redsync"
	LockProviderLocal   = "local"

	DefaultLockExpiry = 5 * time.Second
	DefaultLockTries  = 32
)

// 动作类型常量
const (
	// ActionTypeArticleGeneration AI 文章生成
	ActionTypeArticleGeneration = "article_generation"
	// ActionTypeAdminGrant 管理员充值
	ActionTypeAdminGrant = "admin_grant"
)

// 计价策略
const (
	// PricingPolicyTable 价格表
	PricingPolicyTable = "table"
	// PricingPolicySupplied 调用方传入
	PricingPolicySupplied = "supplied"
	// PricingPolicySuppliedOrTable 调用方传入，缺省时查价格表
	PricingPolicySuppliedOrTable = "supplied_or_table"
)

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// 变更类型（用于指标与事件）
const (
	MutationKindDebit = "debit"
	MutationKindGrant = "grant"
)

// 额度检查结果常量
const (
	CheckResultSufficient   = "sufficient"
	CheckResultInsufficient = "insufficient"
	CheckResultError        = "error"
)

// 变更结果常量（用于指标）
const (
	MutationResultSuccess      = "success"
	MutationResultReplayed     = "replayed"
	MutationResultInsufficient = "insufficient"
	MutationResultInvalid      = "invalid"
	MutationResultError        = "error"
)

// 锁获取结果常量
const (
	LockResultSuccess = "success"
	LockResultFailed  = "failed"
)

// 账本事件类型
const (
	EventTypeLedgerEntry   = "ledger_entry"
	EventTypeDebitRejected = "debit_rejected"
)

// HTTP 请求头
const (
	// HeaderOperatorID 网关注入的操作人 ID
	HeaderOperatorID = "X-Operator-Id"
)

// 时间格式
const (
	TimeFormatDate = "2006-01-02"
)
