package biz

import (
	"context"
	"time"

	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// CreditLedgerEntry 积分账本记录（只追加，不修改、不删除）
type CreditLedgerEntry struct {
	ID             string
	OrganizationID string
	UserID         string
	ArticleID      string
	ActionType     string
	Platform       string
	CreditsDelta   int64 // 负数为消耗，正数为充值
	BalanceAfter   int64
	RequestID      string
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}

// LedgerFilter 账本查询条件
type LedgerFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	Platform   string
	ActionType string
}

// PaginatedLedger 账本分页结果
type PaginatedLedger struct {
	Entries    []*CreditLedgerEntry
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// LedgerRepo 账本数据层接口（定义在 biz 层）
type LedgerRepo interface {
	// ListLedger 按 created_at 倒序查询
	ListLedger(ctx context.Context, orgID string, filter *LedgerFilter, offset, limit int) ([]*CreditLedgerEntry, int64, error)
}

// LedgerUseCase 账本查询
type LedgerUseCase struct {
	repo LedgerRepo
	conf *CreditConfig
	log  *log.Helper
}

// NewLedgerUseCase 创建账本查询 UseCase
func NewLedgerUseCase(repo LedgerRepo, conf *CreditConfig, logger log.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		repo: repo,
		conf: conf,
		log:  log.NewHelper(logger),
	}
}

// ListLedger 分页查询账本，page 从 1 开始；pageSize 为 0 时取默认值，超出范围时截断到 [1, MaxPageSize]
func (uc *LedgerUseCase) ListLedger(ctx context.Context, orgID string, filter *LedgerFilter, page, pageSize int) (*PaginatedLedger, error) {
	if orgID == "" {
		return nil, creditErrors.InvalidArgument("organization_id is required")
	}
	if page < 1 {
		return nil, creditErrors.InvalidArgument("page must be >= 1, got %d", page)
	}
	pageSize = uc.clampPageSize(pageSize)
	if filter == nil {
		filter = &LedgerFilter{}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, creditErrors.InvalidArgument("start_date must not be after end_date")
	}

	entries, total, err := uc.repo.ListLedger(ctx, orgID, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("ListLedger failed: org=%s, error=%v", orgID, err)
		return nil, creditErrors.StorageFailure(err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &PaginatedLedger{
		Entries:    entries,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (uc *LedgerUseCase) clampPageSize(pageSize int) int {
	switch {
	case pageSize == 0:
		return uc.conf.DefaultPageSize
	case pageSize < 1:
		return 1
	case pageSize > uc.conf.MaxPageSize:
		return uc.conf.MaxPageSize
	}
	return pageSize
}
