package biz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrg = "org-1"

func newTestCreditUseCase(t *testing.T, policy string) (*CreditUseCase, *memStore, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	pricing := newMemPricing(map[[2]string]int64{
		{constants.ActionTypeArticleGeneration, ""}:     10,
		{constants.ActionTypeArticleGeneration, "blog"}: 10,
		{constants.ActionTypeArticleGeneration, "x"}:    2,
	})
	conf := &CreditConfig{
		PricingPolicy:       policy,
		DefaultPageSize:     constants.DefaultPageSize,
		MaxPageSize:         constants.MaxPageSize,
		BalanceLowThreshold: 10,
	}
	pub := &recordingPublisher{}
	resolver := NewPricingResolver(conf, NewTablePricingResolver(pricing))
	return NewCreditUseCase(store, resolver, pub, conf, log.DefaultLogger), store, pub
}

func grant(t *testing.T, uc *CreditUseCase, orgID string, amount int64) *MutationResult {
	t.Helper()
	res, err := uc.Grant(context.Background(), &GrantRequest{OrganizationID: orgID, Amount: amount, GrantedBy: "admin"})
	require.NoError(t, err)
	return res
}

func TestCheckSufficientCredits_ZeroBalance(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicyTable)

	check, err := uc.CheckSufficientCredits(context.Background(), &CheckRequest{
		OrganizationID: testOrg,
		Platform:       "blog",
	})
	require.NoError(t, err)
	assert.Equal(t, &CreditCheck{Sufficient: false, Balance: 0, Required: 10}, check)

	_, exists := store.balances[testOrg]
	assert.False(t, exists, "check must not materialize a balance row")
}

func TestGrant_FromZero(t *testing.T) {
	uc, store, pub := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)

	res := grant(t, uc, testOrg, 50)
	assert.Equal(t, int64(50), res.BalanceAfter)
	assert.Equal(t, int64(50), res.CreditsDelta)
	assert.False(t, res.Replayed)

	entries := store.entriesFor(testOrg)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(50), entries[0].CreditsDelta)
	assert.Equal(t, int64(50), entries[0].BalanceAfter)
	assert.Equal(t, constants.ActionTypeAdminGrant, entries[0].ActionType)

	require.Len(t, store.grants, 1)
	assert.Equal(t, entries[0].ID, store.grants[0].LedgerEntryID)
	assert.Equal(t, "admin", store.grants[0].GrantedBy)

	assert.Len(t, pub.ofType(constants.EventTypeLedgerEntry), 1)
}

func TestDebit_Success(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 50)

	res, err := uc.Debit(context.Background(), &DebitRequest{
		OrganizationID:  testOrg,
		UserID:          "user-1",
		Platform:        "blog",
		RequiredCredits: 10,
		ArtifactID:      "article-1",
		Metadata:        map[string]interface{}{"topic_id": "t-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.BalanceAfter)
	assert.Equal(t, int64(-10), res.CreditsDelta)

	entries := store.entriesFor(testOrg)
	require.Len(t, entries, 2)
	last := entries[1]
	assert.Equal(t, int64(-10), last.CreditsDelta)
	assert.Equal(t, int64(40), last.BalanceAfter)
	assert.Equal(t, "user-1", last.UserID)
	assert.Equal(t, "article-1", last.ArticleID)
	assert.Equal(t, "blog", last.Platform)
	assert.Equal(t, constants.ActionTypeArticleGeneration, last.ActionType)
	assert.Equal(t, "t-1", last.Metadata["topic_id"])
}

func TestDebit_InsufficientLeavesNoTrace(t *testing.T) {
	uc, store, pub := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 5)
	before, err := uc.GetBalance(context.Background(), testOrg)
	require.NoError(t, err)

	_, err = uc.Debit(context.Background(), &DebitRequest{
		OrganizationID:  testOrg,
		RequiredCredits: 10,
		ArtifactID:      "article-9",
	})
	require.Error(t, err)
	assert.True(t, creditErrors.IsInsufficientCredits(err))
	required, available, ok := creditErrors.InsufficientDetail(err)
	require.True(t, ok)
	assert.Equal(t, int64(10), required)
	assert.Equal(t, int64(5), available)

	after, err := uc.GetBalance(context.Background(), testOrg)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, store.entriesFor(testOrg), 1)

	rejected := pub.ofType(constants.EventTypeDebitRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "article-9", rejected[0].ArticleID)
	assert.Equal(t, int64(10), rejected[0].Required)
	assert.Equal(t, int64(5), rejected[0].Available)
}

func TestDebit_InvalidAmount(t *testing.T) {
	tests := []struct {
		name     string
		policy   string
		required int64
	}{
		{"negative with fallback", constants.PricingPolicySuppliedOrTable, -1},
		{"zero when supplied only", constants.PricingPolicySupplied, 0},
		{"negative when supplied only", constants.PricingPolicySupplied, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, store, _ := newTestCreditUseCase(t, tt.policy)
			grant(t, uc, testOrg, 100)

			_, err := uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, RequiredCredits: tt.required})
			require.Error(t, err)
			assert.True(t, creditErrors.IsInvalidAmount(err))
			assert.True(t, creditErrors.IsCallerError(err))
			assert.Len(t, store.entriesFor(testOrg), 1)
			assert.Equal(t, int64(100), store.balances[testOrg])
		})
	}
}

func TestDebit_PricingFromTable(t *testing.T) {
	uc, _, _ := newTestCreditUseCase(t, constants.PricingPolicyTable)
	grant(t, uc, testOrg, 20)

	// 表策略忽略调用方价格
	res, err := uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, Platform: "x", RequiredCredits: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), res.CreditsDelta)

	// 平台未单独定价时使用默认价
	res, err = uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, Platform: "medium"})
	require.NoError(t, err)
	assert.Equal(t, int64(-10), res.CreditsDelta)
	assert.Equal(t, int64(8), res.BalanceAfter)

	_, err = uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, ActionType: "image_generation"})
	require.Error(t, err)
	assert.True(t, creditErrors.IsPricingNotFound(err))
}

func TestDebit_RequiresOrganization(t *testing.T) {
	uc, _, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	_, err := uc.Debit(context.Background(), &DebitRequest{RequiredCredits: 1})
	require.Error(t, err)
	assert.True(t, creditErrors.IsCallerError(err))
}

func TestGrant_InvalidAmount(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	for _, amount := range []int64{0, -10} {
		_, err := uc.Grant(context.Background(), &GrantRequest{OrganizationID: testOrg, Amount: amount})
		require.Error(t, err)
		assert.True(t, creditErrors.IsInvalidAmount(err))
	}
	assert.Empty(t, store.entriesFor(testOrg))
}

func TestDebit_StorageFailureIsTyped(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 50)
	store.failNext = errors.New("connection reset")

	_, err := uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, RequiredCredits: 10})
	require.Error(t, err)
	assert.True(t, creditErrors.ErrStorageFailure.Is(err))
	assert.False(t, creditErrors.IsCallerError(err))
	assert.Equal(t, int64(50), store.balances[testOrg])
}

func TestDebit_IdempotentReplay(t *testing.T) {
	uc, store, pub := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 50)

	req := &DebitRequest{OrganizationID: testOrg, RequiredCredits: 10, RequestID: "req-1"}
	first, err := uc.Debit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := uc.Debit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.LedgerEntryID, second.LedgerEntryID)
	assert.Equal(t, first.BalanceAfter, second.BalanceAfter)

	assert.Equal(t, int64(40), store.balances[testOrg])
	assert.Len(t, store.entriesFor(testOrg), 2)
	assert.Len(t, pub.ofType(constants.EventTypeLedgerEntry), 2, "replay must not publish again")

	_, err = uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, RequiredCredits: 20, RequestID: "req-1"})
	require.Error(t, err)
	assert.True(t, creditErrors.ErrIdempotencyConflict.Is(err))
	assert.Equal(t, int64(40), store.balances[testOrg])
}

func TestDebit_ReplayAfterBalanceDrained(t *testing.T) {
	uc, _, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 10)

	req := &DebitRequest{OrganizationID: testOrg, RequiredCredits: 10, RequestID: "req-2"}
	_, err := uc.Debit(context.Background(), req)
	require.NoError(t, err)

	// 余额已为 0，重放仍然返回首次结果而不是积分不足
	res, err := uc.Debit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, int64(0), res.BalanceAfter)
}

func TestDebit_ConcurrentSameOrganization(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 40)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, RequiredCredits: 30})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			insufficient = append(insufficient, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, insufficient, 1)
	required, available, ok := creditErrors.InsufficientDetail(insufficient[0])
	require.True(t, ok)
	assert.Equal(t, int64(30), required)
	assert.Equal(t, int64(10), available)
	assert.Equal(t, int64(10), store.balances[testOrg])
}

func TestDebit_ManyConcurrentNeverOverspend(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, RequiredCredits: 7})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, creditErrors.IsInsufficientCredits(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, successes)
	assert.Equal(t, int64(2), store.balances[testOrg])
	snapshot, err := store.SnapshotOrganization(context.Background(), testOrg)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Balance, snapshot.LedgerSum)
}

func TestDebit_AdvisoryCheckRace(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 10)

	check, err := uc.CheckSufficientCredits(context.Background(), &CheckRequest{OrganizationID: testOrg, RequiredCredits: 10})
	require.NoError(t, err)
	require.True(t, check.Sufficient)

	// 预检之后另一个请求先扣光余额
	_, err = uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, RequiredCredits: 10})
	require.NoError(t, err)

	_, err = uc.Debit(context.Background(), &DebitRequest{OrganizationID: testOrg, RequiredCredits: 10})
	require.Error(t, err)
	assert.True(t, creditErrors.IsInsufficientCredits(err))
	assert.Equal(t, int64(0), store.balances[testOrg])
}

func TestCommit_PublishFailureDoesNotFailMutation(t *testing.T) {
	uc, store, pub := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	pub.err = errors.New("broker unavailable")

	res := grant(t, uc, testOrg, 25)
	assert.Equal(t, int64(25), res.BalanceAfter)
	assert.Equal(t, int64(25), store.balances[testOrg])
}

func TestDebit_ReplayMustMatchPlatformAndArtifact(t *testing.T) {
	uc, store, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	grant(t, uc, testOrg, 50)

	req := &DebitRequest{OrganizationID: testOrg, Platform: "blog", ArtifactID: "article-1", RequiredCredits: 10, RequestID: "req-3"}
	_, err := uc.Debit(context.Background(), req)
	require.NoError(t, err)

	otherPlatform := *req
	otherPlatform.Platform = "x"
	_, err = uc.Debit(context.Background(), &otherPlatform)
	require.Error(t, err)
	assert.True(t, creditErrors.ErrIdempotencyConflict.Is(err))

	otherArtifact := *req
	otherArtifact.ArtifactID = "article-2"
	_, err = uc.Debit(context.Background(), &otherArtifact)
	require.Error(t, err)
	assert.True(t, creditErrors.ErrIdempotencyConflict.Is(err))

	assert.Equal(t, int64(40), store.balances[testOrg])
	assert.Len(t, store.entriesFor(testOrg), 2)
}

func TestDebit_ReplayAfterTablePriceChange(t *testing.T) {
	store := newMemStore()
	pricing := newMemPricing(map[[2]string]int64{
		{constants.ActionTypeArticleGeneration, "blog"}: 10,
	})
	conf := &CreditConfig{
		PricingPolicy:       constants.PricingPolicyTable,
		DefaultPageSize:     constants.DefaultPageSize,
		MaxPageSize:         constants.MaxPageSize,
		BalanceLowThreshold: 10,
	}
	resolver := NewPricingResolver(conf, NewTablePricingResolver(pricing))
	uc := NewCreditUseCase(store, resolver, &recordingPublisher{}, conf, log.DefaultLogger)
	grant(t, uc, testOrg, 50)

	req := &DebitRequest{OrganizationID: testOrg, Platform: "blog", RequestID: "req-4"}
	first, err := uc.Debit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), first.CreditsDelta)

	require.NoError(t, pricing.UpsertPricing(context.Background(), &CreditPricing{
		ActionType:      constants.ActionTypeArticleGeneration,
		Platform:        "blog",
		CreditsRequired: 15,
	}))

	retry, err := uc.Debit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, retry.Replayed)
	assert.Equal(t, first.LedgerEntryID, retry.LedgerEntryID)
	assert.Equal(t, int64(-10), retry.CreditsDelta)
	assert.Equal(t, int64(40), store.balances[testOrg])
}

func TestCommit_LowBalanceAlertPerOrganization(t *testing.T) {
	uc, _, _ := newTestCreditUseCase(t, constants.PricingPolicySuppliedOrTable)
	alert := metrics.GetMetrics().BalanceLowAlert

	grant(t, uc, "org-low-alert", 5)
	grant(t, uc, "org-healthy-alert", 50)
	assert.Equal(t, 1.0, testutil.ToFloat64(alert.WithLabelValues("org-low-alert")))
	assert.Equal(t, 0.0, testutil.ToFloat64(alert.WithLabelValues("org-healthy-alert")))

	grant(t, uc, "org-low-alert", 20)
	assert.Equal(t, 0.0, testutil.ToFloat64(alert.WithLabelValues("org-low-alert")))
}
