package data

import (
	"context"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
)

// reconcileRepo 对账读取。
// 余额与账本合计放在同一条 SELECT 里，依赖数据库的语句级一致性读：
// 余额更新与账本插入在同一事务提交，快照要么都看到要么都看不到。
type reconcileRepo struct {
	data *Data
	log  *log.Helper
}

// NewReconcileRepo 创建对账 repo（返回 biz.ReconcileRepo 接口）
func NewReconcileRepo(data *Data, logger log.Logger) biz.ReconcileRepo {
	return &reconcileRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

type snapshotRow struct {
	OrganizationID string
	Balance        int64
	LedgerSum      int64
}

// SnapshotOrganization 读取单个组织的余额与账本合计
func (r *reconcileRepo) SnapshotOrganization(ctx context.Context, orgID string) (*biz.LedgerSnapshot, error) {
	query := fmt.Sprintf(
		"SELECT COALESCE((SELECT balance FROM %s WHERE organization_id = ?), 0) AS balance, "+
			"COALESCE((SELECT SUM(credits_delta) FROM %s WHERE organization_id = ?), 0) AS ledger_sum",
		model.CreditBalance{}.TableName(), model.CreditLedgerEntry{}.TableName(),
	)
	var row snapshotRow
	if err := r.data.db.WithContext(ctx).Raw(query, orgID, orgID).Scan(&row).Error; err != nil {
		r.log.WithContext(ctx).Errorf("snapshot organization failed: org=%s, error=%v", orgID, err)
		return nil, err
	}
	return &biz.LedgerSnapshot{
		OrganizationID: orgID,
		Balance:        row.Balance,
		LedgerSum:      row.LedgerSum,
	}, nil
}

// ListSnapshots 按 organization_id 升序分批读取快照
func (r *reconcileRepo) ListSnapshots(ctx context.Context, afterOrgID string, limit int) ([]*biz.LedgerSnapshot, error) {
	var rows []snapshotRow
	if err := r.data.db.WithContext(ctx).
		Table(model.CreditBalance{}.TableName()+" AS b").
		Select("b.organization_id, b.balance, COALESCE(SUM(l.credits_delta), 0) AS ledger_sum").
		Joins("LEFT JOIN "+model.CreditLedgerEntry{}.TableName()+" AS l ON l.organization_id = b.organization_id").
		Where("b.organization_id > ?", afterOrgID).
		Group("b.organization_id, b.balance").
		Order("b.organization_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		r.log.WithContext(ctx).Errorf("list snapshots failed: after=%s, error=%v", afterOrgID, err)
		return nil, err
	}
	snapshots := make([]*biz.LedgerSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, &biz.LedgerSnapshot{
			OrganizationID: row.OrganizationID,
			Balance:        row.Balance,
			LedgerSum:      row.LedgerSum,
		})
	}
	return snapshots, nil
}
