package data

import (
	"context"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
)

// ledgerRepo 账本相关数据访问（只读；写入由 balanceRepo 在事务内完成）
type ledgerRepo struct {
	data *Data
	log  *log.Helper
}

// NewLedgerRepo 创建账本 repo（返回 biz.LedgerRepo 接口）
func NewLedgerRepo(data *Data, logger log.Logger) biz.LedgerRepo {
	return &ledgerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// ListLedger 分页查询账本，最新的在前；created_at 相同时按 id 倒序
func (r *ledgerRepo) ListLedger(ctx context.Context, orgID string, filter *biz.LedgerFilter, offset, limit int) ([]*biz.CreditLedgerEntry, int64, error) {
	var models []model.CreditLedgerEntry
	var total int64

	db := r.data.db.WithContext(ctx).Model(&model.CreditLedgerEntry{}).Where("organization_id = ?", orgID)
	if filter != nil {
		if filter.StartDate != nil {
			db = db.Where("created_at >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			db = db.Where("created_at <= ?", *filter.EndDate)
		}
		if filter.Platform != "" {
			db = db.Where("platform = ?", filter.Platform)
		}
		if filter.ActionType != "" {
			db = db.Where("action_type = ?", filter.ActionType)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*biz.CreditLedgerEntry{}, 0, nil
	}

	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*biz.CreditLedgerEntry, 0, len(models))
	for i := range models {
		entries = append(entries, toBizLedgerEntry(&models[i]))
	}
	return entries, total, nil
}

func toBizLedgerEntry(m *model.CreditLedgerEntry) *biz.CreditLedgerEntry {
	e := &biz.CreditLedgerEntry{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		ArticleID:      m.ArticleID,
		ActionType:     m.ActionType,
		Platform:       m.Platform,
		CreditsDelta:   m.CreditsDelta,
		BalanceAfter:   m.BalanceAfter,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
	if m.RequestID != nil {
		e.RequestID = *m.RequestID
	}
	return e
}

func toModelLedgerEntry(e *biz.CreditLedgerEntry) *model.CreditLedgerEntry {
	m := &model.CreditLedgerEntry{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		UserID:         e.UserID,
		ArticleID:      e.ArticleID,
		ActionType:     e.ActionType,
		Platform:       e.Platform,
		CreditsDelta:   e.CreditsDelta,
		BalanceAfter:   e.BalanceAfter,
	}
	if e.RequestID != "" {
		requestID := e.RequestID
		m.RequestID = &requestID
	}
	if len(e.Metadata) > 0 {
		m.Metadata = datatypes.JSONMap(e.Metadata)
	}
	return m
}
