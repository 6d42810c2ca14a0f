package model

import (
	"time"

	"gorm.io/datatypes"
)

// CreditGrant 充值记录表
type CreditGrant struct {
	ID             string            `gorm:"primaryKey;type:varchar(36)"`
	OrganizationID string            `gorm:"type:varchar(64);not null;index"`
	LedgerEntryID  string            `gorm:"type:varchar(36);not null;uniqueIndex"`
	Amount         int64             `gorm:"not null"`
	GrantedBy      string            `gorm:"type:varchar(64)"`
	Reason         string            `gorm:"type:varchar(255)"`
	Metadata       datatypes.JSONMap `gorm:"type:json"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (CreditGrant) TableName() string {
	return "credit_grants"
}
