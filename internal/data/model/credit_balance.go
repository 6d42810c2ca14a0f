package model

import (
	"time"
)

// CreditBalance 组织积分余额表（每个组织一行，首次变更时创建）
type CreditBalance struct {
	OrganizationID string    `gorm:"primaryKey;type:varchar(64)"`
	Balance        int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CreditBalance) TableName() string {
	return "credit_balances"
}
