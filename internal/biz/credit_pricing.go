package biz

import (
	"context"
	"strings"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// CreditPricing 价格表条目
type CreditPricing struct {
	ActionType      string
	Platform        string
	CreditsRequired int64
	UpdatedAt       time.Time
}

// PricingRepo 价格表数据层接口（定义在 biz 层）
type PricingRepo interface {
	// GetPricing 精确匹配 (action_type, platform)，不存在时返回 nil, nil
	GetPricing(ctx context.Context, actionType, platform string) (*CreditPricing, error)
	UpsertPricing(ctx context.Context, pricing *CreditPricing) error
	ListPricing(ctx context.Context) ([]*CreditPricing, error)
}

// PriceQuery 计价请求
type PriceQuery struct {
	ActionType string
	Platform   string
	// Supplied 调用方给出的价格，0 表示未给出
	Supplied int64
}

// PricingResolver 计价策略；扣费引擎只关心最终得到一个正整数
type PricingResolver interface {
	ResolvePrice(ctx context.Context, q PriceQuery) (int64, error)
}

// TablePricingResolver 查价格表；平台没有单独定价时回退到 platform="" 的默认价
type TablePricingResolver struct {
	repo PricingRepo
}

// NewTablePricingResolver 创建价格表计价
func NewTablePricingResolver(repo PricingRepo) *TablePricingResolver {
	return &TablePricingResolver{repo: repo}
}

// ResolvePrice 查价格表
func (r *TablePricingResolver) ResolvePrice(ctx context.Context, q PriceQuery) (int64, error) {
	if q.ActionType == "" {
		return 0, creditErrors.InvalidArgument("action_type is required")
	}
	p, err := r.repo.GetPricing(ctx, q.ActionType, q.Platform)
	if err != nil {
		return 0, creditErrors.StorageFailure(err)
	}
	if p == nil && q.Platform != "" {
		p, err = r.repo.GetPricing(ctx, q.ActionType, "")
		if err != nil {
			return 0, creditErrors.StorageFailure(err)
		}
	}
	if p == nil || p.CreditsRequired <= 0 {
		return 0, creditErrors.PricingNotFound(q.ActionType, q.Platform)
	}
	return p.CreditsRequired, nil
}

// SuppliedPricingResolver 直接使用调用方传入的价格
type SuppliedPricingResolver struct{}

// ResolvePrice 校验 Supplied > 0
func (SuppliedPricingResolver) ResolvePrice(_ context.Context, q PriceQuery) (int64, error) {
	if q.Supplied <= 0 {
		return 0, creditErrors.InvalidAmount(q.Supplied)
	}
	return q.Supplied, nil
}

// FallbackPricingResolver 优先使用调用方价格，未给出时查价格表
type FallbackPricingResolver struct {
	table PricingResolver
}

// ResolvePrice 负数价格直接拒绝，不回退
func (r *FallbackPricingResolver) ResolvePrice(ctx context.Context, q PriceQuery) (int64, error) {
	if q.Supplied < 0 {
		return 0, creditErrors.InvalidAmount(q.Supplied)
	}
	if q.Supplied > 0 {
		return q.Supplied, nil
	}
	return r.table.ResolvePrice(ctx, q)
}

// NewPricingResolver 按配置选择计价策略
func NewPricingResolver(conf *CreditConfig, table *TablePricingResolver) PricingResolver {
	switch conf.PricingPolicy {
	case constants.PricingPolicyTable:
		return table
	case constants.PricingPolicySupplied:
		return SuppliedPricingResolver{}
	default:
		return &FallbackPricingResolver{table: table}
	}
}

// PricingUseCase 价格表管理
type PricingUseCase struct {
	repo PricingRepo
	log  *log.Helper
}

// NewPricingUseCase 创建价格表管理 UseCase
func NewPricingUseCase(repo PricingRepo, logger log.Logger) *PricingUseCase {
	return &PricingUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// UpsertPricing 新增或修改价格
func (uc *PricingUseCase) UpsertPricing(ctx context.Context, pricing *CreditPricing) error {
	if pricing == nil || strings.TrimSpace(pricing.ActionType) == "" {
		return creditErrors.InvalidArgument("action_type is required")
	}
	if pricing.CreditsRequired <= 0 {
		return creditErrors.InvalidAmount(pricing.CreditsRequired)
	}
	pricing.ActionType = strings.TrimSpace(pricing.ActionType)
	pricing.Platform = strings.TrimSpace(pricing.Platform)
	if err := uc.repo.UpsertPricing(ctx, pricing); err != nil {
		return creditErrors.StorageFailure(err)
	}
	uc.log.WithContext(ctx).Infof("pricing updated: action_type=%s, platform=%s, credits=%d",
		pricing.ActionType, pricing.Platform, pricing.CreditsRequired)
	return nil
}

// ListPricing 列出价格表
func (uc *PricingUseCase) ListPricing(ctx context.Context) ([]*CreditPricing, error) {
	items, err := uc.repo.ListPricing(ctx)
	if err != nil {
		return nil, creditErrors.StorageFailure(err)
	}
	return items, nil
}
