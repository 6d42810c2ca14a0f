package data

import (
	"context"
	"fmt"
	"strings"

	"credit-service/internal/conf"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewMQProducer,
	NewData,
	NewLocker,
	NewBalanceRepo,
	NewLedgerRepo,
	NewReconcileRepo,
	NewPricingRepo,
	NewLedgerEventPublisher,
)

// Data 数据层结构体
type Data struct {
	db  *gorm.DB
	rdb *redis.Client // 可能为 nil，此时不使用余额缓存
}

// NewDB 创建数据库连接
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	dbConf := c.Data.Database

	var dialector gorm.Dialector
	switch strings.ToLower(dbConf.Driver) {
	case "", "mysql":
		dialector = mysql.Open(dbConf.Source)
	case "postgres", "postgresql":
		dialector = postgres.Open(dbConf.Source)
	case "sqlite":
		dialector = sqlite.Open(dbConf.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbConf.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbConf.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConf.MaxOpenConns)
	}
	if dbConf.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConf.MaxIdleConns)
	}

	if dbConf.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	if c.Credit != nil {
		if err := SeedPricing(context.Background(), db, c.Credit.Prices); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.CreditBalance{},
		&model.CreditLedgerEntry{},
		&model.CreditGrant{},
		&model.CreditPricing{},
	)
}

// SeedPricing 写入配置中的默认价格；已存在的价格不覆盖
func SeedPricing(ctx context.Context, db *gorm.DB, prices []*conf.PriceEntry) error {
	if len(prices) == 0 {
		return nil
	}
	rows := make([]model.CreditPricing, 0, len(prices))
	for _, p := range prices {
		if p == nil || p.ActionType == "" || p.CreditsRequired <= 0 {
			continue
		}
		rows = append(rows, model.CreditPricing{
			ActionType:      p.ActionType,
			Platform:        p.Platform,
			CreditsRequired: p.CreditsRequired,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// NewRedis 创建 Redis 连接；未配置时返回 nil，余额缓存与分布式锁随之关闭
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil || c.Data.Redis.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           c.Data.Redis.DB,
		ReadTimeout:  c.Data.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Data.Redis.WriteTimeout.AsDuration(),
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 基于 go-redis v8 创建 redsync；没有 Redis 时返回 nil
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	if rdb == nil {
		return nil
	}
	return redsync.New(goredis.NewPool(rdb))
}

// NewMQProducer 创建账本事件 producer；未启用 RocketMQ 时返回 nil
func NewMQProducer(c *conf.Bootstrap, logger log.Logger) (rocketmq.Producer, func(), error) {
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return nil, func() {}, nil
	}
	mq := c.Data.Rocketmq

	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		producer.WithRetry(int(mq.RetryTimes)),
		producer.WithGroupName(mq.GroupName),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Start(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := p.Shutdown(); err != nil {
			log.NewHelper(logger).Errorf("failed to shutdown rocketmq producer: %v", err)
		}
	}
	return p, cleanup, nil
}

// NewData 创建数据层实例
func NewData(logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.NewHelper(logger).Errorf("failed to close redis: %v", err)
			}
		}
	}

	return &Data{
		db:  db,
		rdb: rdb,
	}, cleanup, nil
}

// lockProvider 读取锁配置
func lockProvider(c *conf.Bootstrap) string {
	if c.Data == nil || c.Data.Lock == nil || c.Data.Lock.Provider == "" {
		return constants.LockProviderRedsync
	}
	return c.Data.Lock.Provider
}
