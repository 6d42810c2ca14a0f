package data

import (
	"context"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm/clause"
)

// pricingRepo 价格表数据访问，读路径带进程内缓存
type pricingRepo struct {
	data  *Data
	cache *cache.Cache
	log   *log.Helper
}

// NewPricingRepo 创建价格表 repo（返回 biz.PricingRepo 接口）
func NewPricingRepo(c *conf.Bootstrap, data *Data, logger log.Logger) biz.PricingRepo {
	ttl := constants.DefaultPricingCacheTTL
	if c != nil && c.Credit != nil {
		if d := c.Credit.PricingCacheTTL.AsDuration(); d > 0 {
			ttl = d
		}
	}
	return &pricingRepo{
		data:  data,
		cache: cache.New(ttl, 2*ttl),
		log:   log.NewHelper(logger),
	}
}

// GetPricing 精确匹配；未配置时返回 nil, nil（未命中也会缓存）
func (r *pricingRepo) GetPricing(ctx context.Context, actionType, platform string) (*biz.CreditPricing, error) {
	key := pricingKey(actionType, platform)
	if x, found := r.cache.Get(key); found {
		p, _ := x.(*biz.CreditPricing)
		return p, nil
	}

	var m model.CreditPricing
	res := r.data.db.WithContext(ctx).
		Where("action_type = ? AND platform = ?", actionType, platform).
		Limit(1).
		Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}

	var p *biz.CreditPricing
	if res.RowsAffected > 0 {
		p = toBizPricing(&m)
	}
	r.cache.Set(key, p, cache.DefaultExpiration)
	return p, nil
}

// UpsertPricing 新增或覆盖价格，并清除对应缓存
func (r *pricingRepo) UpsertPricing(ctx context.Context, pricing *biz.CreditPricing) error {
	m := model.CreditPricing{
		ActionType:      pricing.ActionType,
		Platform:        pricing.Platform,
		CreditsRequired: pricing.CreditsRequired,
	}
	err := r.data.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "action_type"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"credits_required", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return err
	}
	r.cache.Delete(pricingKey(pricing.ActionType, pricing.Platform))
	pricing.UpdatedAt = m.UpdatedAt
	return nil
}

// ListPricing 列出全部价格
func (r *pricingRepo) ListPricing(ctx context.Context) ([]*biz.CreditPricing, error) {
	var models []model.CreditPricing
	if err := r.data.db.WithContext(ctx).
		Order("action_type ASC").
		Order("platform ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]*biz.CreditPricing, 0, len(models))
	for i := range models {
		items = append(items, toBizPricing(&models[i]))
	}
	return items, nil
}

func toBizPricing(m *model.CreditPricing) *biz.CreditPricing {
	return &biz.CreditPricing{
		ActionType:      m.ActionType,
		Platform:        m.Platform,
		CreditsRequired: m.CreditsRequired,
		UpdatedAt:       m.UpdatedAt,
	}
}

func pricingKey(actionType, platform string) string {
	return actionType + "|" + platform
}
