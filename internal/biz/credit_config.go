package biz

import (
	"credit-service/internal/conf"
	"credit-service/internal/constants"
)

// CreditConfig 积分配置
type CreditConfig struct {
	PricingPolicy       string
	DefaultPageSize     int
	MaxPageSize         int
	BalanceLowThreshold int64 // 余额低阈值（单位：积分）
}

// NewCreditConfig 从配置创建 CreditConfig
func NewCreditConfig(c *conf.Bootstrap) *CreditConfig {
	config := &CreditConfig{
		PricingPolicy:       constants.PricingPolicySuppliedOrTable,
		DefaultPageSize:     constants.DefaultPageSize,
		MaxPageSize:         constants.MaxPageSize,
		BalanceLowThreshold: 10,
	}
	if c == nil || c.Credit == nil {
		return config
	}
	if c.Credit.PricingPolicy != "" {
		config.PricingPolicy = c.Credit.PricingPolicy
	}
	if c.Credit.MaxPageSize > 0 {
		config.MaxPageSize = c.Credit.MaxPageSize
	}
	if c.Credit.DefaultPageSize > 0 {
		config.DefaultPageSize = c.Credit.DefaultPageSize
	}
	if config.DefaultPageSize > config.MaxPageSize {
		config.DefaultPageSize = config.MaxPageSize
	}
	if c.Credit.BalanceLowThreshold > 0 {
		config.BalanceLowThreshold = c.Credit.BalanceLowThreshold
	}
	return config
}
