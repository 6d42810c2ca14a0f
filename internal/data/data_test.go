package data

import (
	"context"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"

	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv 基于内存 sqlite 的完整数据层
type testEnv struct {
	db      *gorm.DB
	data    *Data
	balance biz.BalanceRepo
	ledger  biz.LedgerRepo
	pricing biz.PricingRepo
	credit  *biz.CreditUseCase
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接是独立的数据库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	bc := &conf.Bootstrap{
		Data: &conf.Data{Lock: &conf.Lock{Provider: constants.LockProviderLocal}},
		Credit: &conf.Credit{
			PricingPolicy: constants.PricingPolicySuppliedOrTable,
			Prices: []*conf.PriceEntry{
				{ActionType: constants.ActionTypeArticleGeneration, CreditsRequired: 10},
				{ActionType: constants.ActionTypeArticleGeneration, Platform: "blog", CreditsRequired: 10},
				{ActionType: constants.ActionTypeArticleGeneration, Platform: "twitter", CreditsRequired: 2},
			},
		},
	}
	require.NoError(t, SeedPricing(context.Background(), db, bc.Credit.Prices))

	d := &Data{db: db}
	locker := NewLocker(bc, nil, log.DefaultLogger)
	env := &testEnv{
		db:      db,
		data:    d,
		balance: NewBalanceRepo(bc, d, locker, log.DefaultLogger),
		ledger:  NewLedgerRepo(d, log.DefaultLogger),
		pricing: NewPricingRepo(bc, d, log.DefaultLogger),
	}
	creditConf := biz.NewCreditConfig(bc)
	resolver := biz.NewPricingResolver(creditConf, biz.NewTablePricingResolver(env.pricing))
	publisher := NewLedgerEventPublisher(bc, nil, log.DefaultLogger)
	env.credit = biz.NewCreditUseCase(env.balance, resolver, publisher, creditConf, log.DefaultLogger)
	return env
}
