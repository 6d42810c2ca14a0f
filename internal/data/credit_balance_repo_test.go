package data

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func countRows(t *testing.T, db *gorm.DB, m interface{}, orgID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Where("organization_id = ?", orgID).Count(&n).Error)
	return n
}

func TestBalanceRepo_GetBalanceDoesNotCreateRow(t *testing.T) {
	env := newTestEnv(t)

	balance, err := env.balance.GetBalance(context.Background(), "org-new")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, int64(0), countRows(t, env.db, &model.CreditBalance{}, "org-new"))
}

func TestBalanceRepo_LazyMaterialization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: "org-a", Amount: 50, GrantedBy: "admin", Reason: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.BalanceAfter)

	var row model.CreditBalance
	require.NoError(t, env.db.Where("organization_id = ?", "org-a").First(&row).Error)
	assert.Equal(t, int64(50), row.Balance)

	var g model.CreditGrant
	require.NoError(t, env.db.Where("organization_id = ?", "org-a").First(&g).Error)
	assert.Equal(t, res.LedgerEntryID, g.LedgerEntryID)
	assert.Equal(t, "admin", g.GrantedBy)
	assert.Equal(t, "welcome", g.Reason)
}

func TestBalanceRepo_InsufficientRollsBackLazyRow(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.credit.Debit(context.Background(), &biz.DebitRequest{OrganizationID: "org-empty", RequiredCredits: 10})
	require.Error(t, err)
	assert.True(t, creditErrors.IsInsufficientCredits(err))
	assert.Equal(t, int64(0), countRows(t, env.db, &model.CreditBalance{}, "org-empty"))
	assert.Equal(t, int64(0), countRows(t, env.db, &model.CreditLedgerEntry{}, "org-empty"))
}

func TestBalanceRepo_DebitScenarios(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	org := "org-s"

	_, err := env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: org, Amount: 50})
	require.NoError(t, err)

	res, err := env.credit.Debit(ctx, &biz.DebitRequest{
		OrganizationID:  org,
		UserID:          "user-1",
		Platform:        "blog",
		RequiredCredits: 10,
		ArtifactID:      "article-1",
		Metadata:        map[string]interface{}{"topic_id": "t-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.BalanceAfter)

	var entry model.CreditLedgerEntry
	require.NoError(t, env.db.Where("id = ?", res.LedgerEntryID).First(&entry).Error)
	assert.Equal(t, int64(-10), entry.CreditsDelta)
	assert.Equal(t, int64(40), entry.BalanceAfter)
	assert.Equal(t, "article-1", entry.ArticleID)
	assert.Nil(t, entry.RequestID)
	assert.Equal(t, "t-9", entry.Metadata["topic_id"])

	// 余额 40，需要 45
	_, err = env.credit.Debit(ctx, &biz.DebitRequest{OrganizationID: org, RequiredCredits: 45})
	require.Error(t, err)
	required, available, ok := creditErrors.InsufficientDetail(err)
	require.True(t, ok)
	assert.Equal(t, int64(45), required)
	assert.Equal(t, int64(40), available)

	balance, err := env.balance.GetBalance(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
	assert.Equal(t, int64(2), countRows(t, env.db, &model.CreditLedgerEntry{}, org))
}

func TestBalanceRepo_StorageFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	org := "org-f"

	_, err := env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: org, Amount: 30})
	require.NoError(t, err)

	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:fail_ledger_insert", func(tx *gorm.DB) {
		if tx.Statement.Table == (model.CreditLedgerEntry{}).TableName() {
			tx.AddError(errors.New("disk full"))
		}
	}))

	_, err = env.credit.Debit(ctx, &biz.DebitRequest{OrganizationID: org, RequiredCredits: 10})
	require.Error(t, err)
	assert.True(t, creditErrors.ErrStorageFailure.Is(err))

	// 首次充值时新建的余额行随事务一起回滚
	_, err = env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: "org-f2", Amount: 5})
	require.Error(t, err)
	assert.True(t, creditErrors.ErrStorageFailure.Is(err))

	require.NoError(t, env.db.Callback().Create().Remove("test:fail_ledger_insert"))

	var row model.CreditBalance
	require.NoError(t, env.db.Where("organization_id = ?", org).First(&row).Error)
	assert.Equal(t, int64(30), row.Balance)
	assert.Equal(t, int64(1), countRows(t, env.db, &model.CreditLedgerEntry{}, org))
	assert.Equal(t, int64(0), countRows(t, env.db, &model.CreditBalance{}, "org-f2"))
}

func TestBalanceRepo_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	org := "org-r"

	_, err := env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: org, Amount: 20, RequestID: "grant-1"})
	require.NoError(t, err)

	req := &biz.DebitRequest{OrganizationID: org, RequiredCredits: 10, RequestID: "debit-1"}
	first, err := env.credit.Debit(ctx, req)
	require.NoError(t, err)
	second, err := env.credit.Debit(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.LedgerEntryID, second.LedgerEntryID)
	assert.Equal(t, int64(10), second.BalanceAfter)

	balance, err := env.balance.GetBalance(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
	assert.Equal(t, int64(2), countRows(t, env.db, &model.CreditLedgerEntry{}, org))

	// 同一 request_id 在另一个组织下互不影响
	_, err = env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: "org-other", Amount: 20, RequestID: "grant-1"})
	require.NoError(t, err)
}

func TestBalanceRepo_ConcurrentDebits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	org := "org-c"

	_, err := env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: org, Amount: 40})
	require.NoError(t, err)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.credit.Debit(ctx, &biz.DebitRequest{OrganizationID: org, RequiredCredits: 30})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if creditErrors.IsInsufficientCredits(err) {
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)
	balance, err := env.balance.GetBalance(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestBalanceRepo_ConcurrentOrganizationsReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orgs := []string{"org-p1", "org-p2", "org-p3"}
	for _, org := range orgs {
		_, err := env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: org, Amount: 25})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			org := orgs[i%len(orgs)]
			if i%4 == 0 {
				_, _ = env.credit.Grant(ctx, &biz.GrantRequest{OrganizationID: org, Amount: 3})
				return
			}
			_, _ = env.credit.Debit(ctx, &biz.DebitRequest{OrganizationID: org, RequiredCredits: 4, Metadata: map[string]interface{}{"i": fmt.Sprint(i)}})
		}(i)
	}
	wg.Wait()

	rec := biz.NewReconcileUseCase(NewReconcileRepo(env.data, log.DefaultLogger), log.DefaultLogger)
	for _, org := range orgs {
		res, err := rec.Reconcile(ctx, org)
		require.NoError(t, err)
		assert.True(t, res.Consistent, "org=%s balance=%d sum=%d", org, res.Balance, res.LedgerSum)
		assert.GreaterOrEqual(t, res.Balance, int64(0))
	}
}
