package biz

import (
	"context"
	"time"

	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// reconcileBatchSize 全量对账时每批读取的组织数
const reconcileBatchSize = 500

// ReconcileResult 单个组织的对账结果
type ReconcileResult struct {
	OrganizationID string
	Balance        int64
	LedgerSum      int64
	Consistent     bool
}

// ReconcileSummary 全量对账汇总
type ReconcileSummary struct {
	Checked    int
	Mismatches []*ReconcileResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// LedgerSnapshot 同一时刻读到的余额与账本合计
type LedgerSnapshot struct {
	OrganizationID string
	Balance        int64
	LedgerSum      int64
}

// ReconcileRepo 对账数据层接口（定义在 biz 层）
//
// 余额与账本合计必须来自同一个快照，且直接读库，不经过缓存。
type ReconcileRepo interface {
	// SnapshotOrganization 读取单个组织的快照；没有余额记录时余额为 0
	SnapshotOrganization(ctx context.Context, orgID string) (*LedgerSnapshot, error)
	// ListSnapshots 按 organization_id 升序分批读取有余额记录的组织快照
	ListSnapshots(ctx context.Context, afterOrgID string, limit int) ([]*LedgerSnapshot, error)
}

// ReconcileUseCase 对账：余额必须等于账本 credits_delta 之和
type ReconcileUseCase struct {
	repo    ReconcileRepo
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewReconcileUseCase 创建对账 UseCase
func NewReconcileUseCase(repo ReconcileRepo, logger log.Logger) *ReconcileUseCase {
	return &ReconcileUseCase{
		repo:    repo,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Reconcile 对单个组织对账
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, orgID string) (*ReconcileResult, error) {
	if orgID == "" {
		return nil, creditErrors.InvalidArgument("organization_id is required")
	}
	snapshot, err := uc.repo.SnapshotOrganization(ctx, orgID)
	if err != nil {
		return nil, creditErrors.StorageFailure(err)
	}
	return uc.compare(ctx, snapshot), nil
}

// ReconcileAll 按 organization_id 分批扫描全部余额
func (uc *ReconcileUseCase) ReconcileAll(ctx context.Context) (*ReconcileSummary, error) {
	summary := &ReconcileSummary{StartedAt: time.Now()}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		snapshots, err := uc.repo.ListSnapshots(ctx, after, reconcileBatchSize)
		if err != nil {
			return summary, creditErrors.StorageFailure(err)
		}
		for _, snapshot := range snapshots {
			res := uc.compare(ctx, snapshot)
			summary.Checked++
			if !res.Consistent {
				summary.Mismatches = append(summary.Mismatches, res)
			}
		}
		if len(snapshots) < reconcileBatchSize {
			break
		}
		after = snapshots[len(snapshots)-1].OrganizationID
	}
	summary.FinishedAt = time.Now()
	uc.metrics.ReconcileLastRun.Set(float64(summary.FinishedAt.Unix()))
	uc.log.WithContext(ctx).Infof("reconcile finished: checked=%d, mismatches=%d, cost=%s",
		summary.Checked, len(summary.Mismatches), summary.FinishedAt.Sub(summary.StartedAt))
	return summary, nil
}

func (uc *ReconcileUseCase) compare(ctx context.Context, snapshot *LedgerSnapshot) *ReconcileResult {
	res := &ReconcileResult{
		OrganizationID: snapshot.OrganizationID,
		Balance:        snapshot.Balance,
		LedgerSum:      snapshot.LedgerSum,
		Consistent:     snapshot.Balance == snapshot.LedgerSum,
	}
	if !res.Consistent {
		uc.metrics.ReconcileMismatchTotal.Inc()
		uc.log.WithContext(ctx).Errorf("balance mismatch: org=%s, balance=%d, ledger_sum=%d",
			res.OrganizationID, res.Balance, res.LedgerSum)
	}
	return res
}
