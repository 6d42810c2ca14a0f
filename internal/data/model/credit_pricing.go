package model

import (
	"time"
)

// CreditPricing 价格表，platform 为空串表示该动作的默认价
type CreditPricing struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	ActionType      string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_action_platform,priority:1"`
	Platform        string    `gorm:"type:varchar(32);not null;default:'';uniqueIndex:uk_action_platform,priority:2"`
	CreditsRequired int64     `gorm:"not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CreditPricing) TableName() string {
	return "credit_pricing"
}
