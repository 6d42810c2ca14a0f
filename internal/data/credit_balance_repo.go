package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"
	"credit-service/internal/data/model"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// balanceRepo 余额相关数据访问，也是余额与账本唯一的写入路径
type balanceRepo struct {
	data     *Data
	locker   Locker
	cacheTTL time.Duration
	log      *log.Helper
	metrics  *metrics.CreditMetrics
}

// NewBalanceRepo 创建余额 repo（返回 biz.BalanceRepo 接口）
func NewBalanceRepo(c *conf.Bootstrap, data *Data, locker Locker, logger log.Logger) biz.BalanceRepo {
	ttl := constants.DefaultBalanceCacheTTL
	if c != nil && c.Data != nil && c.Data.Redis != nil {
		if d := c.Data.Redis.BalanceCacheTTL.AsDuration(); d > 0 {
			ttl = d
		}
	}
	return &balanceRepo{
		data:     data,
		locker:   locker,
		cacheTTL: ttl,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

// GetBalance 获取余额：先读缓存，未命中读库。没有余额行时返回 0，不创建记录。
func (r *balanceRepo) GetBalance(ctx context.Context, orgID string) (int64, error) {
	if orgID == "" {
		return 0, fmt.Errorf("orgID is required")
	}

	if r.data.rdb != nil {
		val, err := r.data.rdb.Get(ctx, balanceKey(orgID)).Result()
		if err == nil {
			if balance, err := strconv.ParseInt(val, 10, 64); err == nil {
				r.metrics.BalanceQueryTotal.WithLabelValues("cache").Inc()
				return balance, nil
			}
		} else if err != redis.Nil {
			r.log.WithContext(ctx).Warnf("read balance cache failed: org=%s, error=%v", orgID, err)
		}
	}

	r.metrics.BalanceQueryTotal.WithLabelValues("db").Inc()
	var m model.CreditBalance
	res := r.data.db.WithContext(ctx).Where("organization_id = ?", orgID).Limit(1).Find(&m)
	if res.Error != nil {
		r.log.WithContext(ctx).Errorf("GetBalance failed: org=%s, error=%v", orgID, res.Error)
		return 0, fmt.Errorf("failed to query credit balance from database: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}

	// 只在 key 不存在时回填，避免覆盖提交时写入的更新值
	if r.data.rdb != nil {
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.CacheWriteTimeout)
		defer cancel()
		if err := r.data.rdb.SetNX(cacheCtx, balanceKey(orgID), m.Balance, r.cacheTTL).Err(); err != nil {
			r.log.WithContext(ctx).Warnf("fill balance cache failed: org=%s, error=%v", orgID, err)
		}
	}
	return m.Balance, nil
}

// WithLockedBalance 组织锁 + 行锁 + 事务：读余额、执行 fn、写余额与账本，任一步失败整体回滚
func (r *balanceRepo) WithLockedBalance(ctx context.Context, orgID, requestID string, fn biz.MutateFunc) (*biz.CreditLedgerEntry, error) {
	unlock, err := r.locker.Lock(ctx, constants.RedisKeyBalanceLock+orgID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("failed to acquire balance lock: org=%s, error=%v", orgID, err)
		return nil, creditErrors.LockFailed(err)
	}
	defer unlock()

	var (
		result     *biz.CreditLedgerEntry
		newBalance int64
		changed    bool
	)
	// 拿到锁以后调用方取消也不中断事务，结果要么全部提交要么全部回滚
	txCtx := context.WithoutCancel(ctx)
	err = r.data.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		current, err := lockBalanceRow(tx, orgID)
		if err != nil {
			return err
		}

		locked := &biz.LockedBalance{
			OrganizationID: orgID,
			Balance:        current.Balance,
		}
		if requestID != "" {
			var existing model.CreditLedgerEntry
			res := tx.Where("organization_id = ? AND request_id = ?", orgID, requestID).Limit(1).Find(&existing)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				locked.Replay = toBizLedgerEntry(&existing)
			}
		}

		mutation, err := fn(locked)
		if err != nil {
			return err
		}
		if mutation == nil {
			if locked.Replay == nil {
				return fmt.Errorf("mutation is required when there is nothing to replay")
			}
			result = locked.Replay
			return nil
		}

		entry := mutation.Entry
		if entry == nil || mutation.NewBalance != current.Balance+entry.CreditsDelta || entry.BalanceAfter != mutation.NewBalance {
			return fmt.Errorf("inconsistent mutation: balance=%d, new_balance=%d", current.Balance, mutation.NewBalance)
		}
		if mutation.NewBalance < 0 {
			return fmt.Errorf("mutation would make balance negative: %d", mutation.NewBalance)
		}

		if err := tx.Model(&model.CreditBalance{}).
			Where("organization_id = ?", orgID).
			Update("balance", mutation.NewBalance).Error; err != nil {
			return err
		}

		entry.ID = newID()
		entry.OrganizationID = orgID
		entry.RequestID = requestID
		m := toModelLedgerEntry(entry)
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		entry.CreatedAt = m.CreatedAt

		if g := mutation.Grant; g != nil {
			gm := &model.CreditGrant{
				ID:             newID(),
				OrganizationID: orgID,
				LedgerEntryID:  entry.ID,
				Amount:         g.Amount,
				GrantedBy:      g.GrantedBy,
				Reason:         g.Reason,
				Metadata:       g.Metadata,
			}
			if err := tx.Create(gm).Error; err != nil {
				return err
			}
			g.ID = gm.ID
			g.LedgerEntryID = entry.ID
			g.CreatedAt = gm.CreatedAt
		}

		result = entry
		newBalance = mutation.NewBalance
		changed = true
		return nil
	})
	if err != nil {
		if creditErrors.IsCreditError(err) {
			return nil, err
		}
		r.log.WithContext(ctx).Errorf("balance mutation rolled back: org=%s, error=%v", orgID, err)
		return nil, creditErrors.StorageFailure(err)
	}

	// 仍在锁内，保证缓存写入顺序与提交顺序一致
	if changed {
		r.setCache(txCtx, orgID, newBalance)
	}
	return result, nil
}

// lockBalanceRow 对余额行加行锁；不存在时以 0 创建后再加锁读取
func lockBalanceRow(tx *gorm.DB, orgID string) (*model.CreditBalance, error) {
	var m model.CreditBalance
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("organization_id = ?", orgID).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return &m, nil
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.CreditBalance{OrganizationID: orgID, Balance: 0}).Error; err != nil {
		return nil, err
	}
	res = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("organization_id = ?", orgID).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("credit balance row for %s could not be created", orgID)
	}
	return &m, nil
}

func (r *balanceRepo) setCache(ctx context.Context, orgID string, balance int64) {
	if r.data.rdb == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, constants.CacheWriteTimeout)
	defer cancel()
	if err := r.data.rdb.Set(cacheCtx, balanceKey(orgID), balance, r.cacheTTL).Err(); err != nil {
		// 写失败时删除旧值，避免缓存停留在更早的余额上；Set 可能因超时失败，Del 使用独立的超时
		r.log.Warnf("failed to update balance cache: org=%s, error=%v", orgID, err)
		delCtx, delCancel := context.WithTimeout(context.WithoutCancel(ctx), constants.CacheWriteTimeout)
		defer delCancel()
		if err := r.data.rdb.Del(delCtx, balanceKey(orgID)).Err(); err != nil {
			r.log.Errorf("failed to evict balance cache: org=%s, error=%v", orgID, err)
		}
	}
}

func balanceKey(orgID string) string {
	return constants.RedisKeyBalance + orgID
}

// newID 生成按时间有序的 ID
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
