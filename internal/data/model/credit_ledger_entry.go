package model

import (
	"time"

	"gorm.io/datatypes"
)

// CreditLedgerEntry 积分账本表（只追加）
//
// request_id 为空时存 NULL，唯一索引 (organization_id, request_id) 只约束带幂等键的写入。
type CreditLedgerEntry struct {
	ID             string            `gorm:"primaryKey;type:varchar(36)"`
	OrganizationID string            `gorm:"type:varchar(64);not null;index:idx_org_created,priority:1;uniqueIndex:uk_org_request,priority:1"`
	UserID         string            `gorm:"type:varchar(64)"`
	ArticleID      string            `gorm:"type:varchar(64);index"`
	ActionType     string            `gorm:"type:varchar(64);not null"`
	Platform       string            `gorm:"type:varchar(32)"`
	CreditsDelta   int64             `gorm:"not null"`
	BalanceAfter   int64             `gorm:"not null"`
	RequestID      *string           `gorm:"type:varchar(128);uniqueIndex:uk_org_request,priority:2"`
	Metadata       datatypes.JSONMap `gorm:"type:json"`
	CreatedAt      time.Time         `gorm:"autoCreateTime;index:idx_org_created,priority:2"`
}

// TableName 指定表名
func (CreditLedgerEntry) TableName() string {
	return "credit_ledger_entries"
}
