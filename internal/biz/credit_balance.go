package biz

import "context"

// LockedBalance 持锁期间读到的余额快照
type LockedBalance struct {
	OrganizationID string
	Balance        int64
	// Replay 同一 request_id 已落账的记录，没有则为 nil
	Replay *CreditLedgerEntry
}

// Mutation 一次余额变更：新余额 + 账本记录（+ 可选的充值记录）
type Mutation struct {
	NewBalance int64
	Entry      *CreditLedgerEntry
	Grant      *CreditGrant
}

// MutateFunc 在持锁的事务内执行。
// 返回 error 时整个事务回滚；返回 (nil, nil) 表示不做任何写入。
type MutateFunc func(current *LockedBalance) (*Mutation, error)

// BalanceRepo 余额数据层接口（定义在 biz 层）
//
// 只有 CreditUseCase 可以调用 WithLockedBalance，这是账本与余额始终一致的前提。
type BalanceRepo interface {
	// GetBalance 返回当前余额，没有记录时返回 0 且不创建记录；可能来自缓存
	GetBalance(ctx context.Context, orgID string) (int64, error)
	// WithLockedBalance 获取组织级互斥锁后在事务内执行 fn，返回写入（或重放）的账本记录
	WithLockedBalance(ctx context.Context, orgID, requestID string, fn MutateFunc) (*CreditLedgerEntry, error)
}
