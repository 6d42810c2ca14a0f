package biz

import (
	"context"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// eventPublishTimeout 账本事件发送超时
const eventPublishTimeout = time.Second

// DebitRequest 扣费请求
type DebitRequest struct {
	OrganizationID string
	UserID         string
	ActionType     string // 为空时默认 article_generation
	Platform       string
	// RequiredCredits 调用方给出的价格，0 表示交给价格表
	RequiredCredits int64
	ArtifactID      string
	Metadata        map[string]interface{}
	// RequestID 幂等键，同一组织内唯一
	RequestID string
}

// GrantRequest 充值请求
type GrantRequest struct {
	OrganizationID string
	Amount         int64
	GrantedBy      string
	Reason         string
	Metadata       map[string]interface{}
	RequestID      string
}

// CheckRequest 预检请求
type CheckRequest struct {
	OrganizationID  string
	ActionType      string
	Platform        string
	RequiredCredits int64
}

// CreditCheck 预检结果（不加锁，仅供提前拒绝）
type CreditCheck struct {
	Sufficient bool
	Balance    int64
	Required   int64
}

// MutationResult 余额变更结果；Replayed 为 true 时返回的是首次落账的结果
type MutationResult struct {
	LedgerEntryID string
	CreditsDelta  int64
	BalanceAfter  int64
	Replayed      bool
}

// CreditUseCase 积分业务逻辑：余额查询、预检，以及唯一的余额写入口 Debit / Grant
type CreditUseCase struct {
	repo      BalanceRepo
	pricing   PricingResolver
	publisher LedgerEventPublisher
	conf      *CreditConfig
	log       *log.Helper
	metrics   *metrics.CreditMetrics
}

// NewCreditUseCase 创建积分 UseCase
func NewCreditUseCase(
	repo BalanceRepo,
	pricing PricingResolver,
	publisher LedgerEventPublisher,
	conf *CreditConfig,
	logger log.Logger,
) *CreditUseCase {
	return &CreditUseCase{
		repo:      repo,
		pricing:   pricing,
		publisher: publisher,
		conf:      conf,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// GetBalance 获取余额（可能来自缓存，不能作为扣费依据）
func (uc *CreditUseCase) GetBalance(ctx context.Context, orgID string) (int64, error) {
	if orgID == "" {
		return 0, creditErrors.InvalidArgument("organization_id is required")
	}
	balance, err := uc.repo.GetBalance(ctx, orgID)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("GetBalance failed: org=%s, error=%v", orgID, err)
		return 0, creditErrors.StorageFailure(err)
	}
	return balance, nil
}

// CheckSufficientCredits 预检：在昂贵的 AI 生成之前读一次余额。
// 结果可能已过期，最终以 Debit 在锁内的校验为准。
func (uc *CreditUseCase) CheckSufficientCredits(ctx context.Context, req *CheckRequest) (*CreditCheck, error) {
	startTime := time.Now()
	defer func() {
		uc.metrics.CheckDuration.WithLabelValues(req.Platform).Observe(time.Since(startTime).Seconds())
	}()

	required, err := uc.pricing.ResolvePrice(ctx, PriceQuery{
		ActionType: actionTypeOrDefault(req.ActionType),
		Platform:   req.Platform,
		Supplied:   req.RequiredCredits,
	})
	if err != nil {
		uc.metrics.CheckTotal.WithLabelValues(req.Platform, constants.CheckResultError).Inc()
		return nil, err
	}

	balance, err := uc.GetBalance(ctx, req.OrganizationID)
	if err != nil {
		uc.metrics.CheckTotal.WithLabelValues(req.Platform, constants.CheckResultError).Inc()
		return nil, err
	}

	check := &CreditCheck{
		Sufficient: balance >= required,
		Balance:    balance,
		Required:   required,
	}
	if check.Sufficient {
		uc.metrics.CheckTotal.WithLabelValues(req.Platform, constants.CheckResultSufficient).Inc()
	} else {
		uc.metrics.CheckTotal.WithLabelValues(req.Platform, constants.CheckResultInsufficient).Inc()
	}
	return check, nil
}

// Debit 扣费：组织锁内读余额 -> 校验 -> 扣减 -> 写账本，要么全部生效要么全部不生效
func (uc *CreditUseCase) Debit(ctx context.Context, req *DebitRequest) (*MutationResult, error) {
	startTime := time.Now()
	defer func() {
		uc.metrics.MutationDuration.WithLabelValues(constants.MutationKindDebit).Observe(time.Since(startTime).Seconds())
	}()

	if req == nil || req.OrganizationID == "" {
		uc.metrics.MutationTotal.WithLabelValues(constants.MutationKindDebit, constants.MutationResultInvalid).Inc()
		return nil, creditErrors.InvalidArgument("organization_id is required")
	}
	actionType := actionTypeOrDefault(req.ActionType)

	required, err := uc.pricing.ResolvePrice(ctx, PriceQuery{
		ActionType: actionType,
		Platform:   req.Platform,
		Supplied:   req.RequiredCredits,
	})
	if err != nil {
		uc.metrics.MutationTotal.WithLabelValues(constants.MutationKindDebit, constants.MutationResultInvalid).Inc()
		return nil, err
	}
	if required <= 0 {
		uc.metrics.MutationTotal.WithLabelValues(constants.MutationKindDebit, constants.MutationResultInvalid).Inc()
		return nil, creditErrors.InvalidAmount(required)
	}

	var replayed bool
	entry, err := uc.repo.WithLockedBalance(ctx, req.OrganizationID, req.RequestID, func(current *LockedBalance) (*Mutation, error) {
		if current.Replay != nil {
			if !uc.sameDebit(current.Replay, req, actionType) {
				return nil, creditErrors.IdempotencyConflict(req.RequestID)
			}
			replayed = true
			return nil, nil
		}
		if current.Balance < required {
			return nil, creditErrors.InsufficientCreditsForArtifact(required, current.Balance, req.ArtifactID)
		}
		newBalance := current.Balance - required
		return &Mutation{
			NewBalance: newBalance,
			Entry: &CreditLedgerEntry{
				OrganizationID: req.OrganizationID,
				UserID:         req.UserID,
				ArticleID:      req.ArtifactID,
				ActionType:     actionType,
				Platform:       req.Platform,
				CreditsDelta:   -required,
				BalanceAfter:   newBalance,
				RequestID:      req.RequestID,
				Metadata:       req.Metadata,
			},
		}, nil
	})
	if err != nil {
		return nil, uc.debitFailed(ctx, req, actionType, required, err)
	}

	return uc.committed(ctx, constants.MutationKindDebit, entry, replayed), nil
}

// sameDebit 判断重放请求与已落账的扣费是否一致。
// 调用方未指定积分（或按价格表计费）时不比较金额，以已落账记录为准。
func (uc *CreditUseCase) sameDebit(replay *CreditLedgerEntry, req *DebitRequest, actionType string) bool {
	if replay.CreditsDelta >= 0 ||
		replay.ActionType != actionType ||
		replay.Platform != req.Platform ||
		replay.ArticleID != req.ArtifactID {
		return false
	}
	if req.RequiredCredits > 0 && uc.conf.PricingPolicy != constants.PricingPolicyTable {
		return replay.CreditsDelta == -req.RequiredCredits
	}
	return true
}

// Grant 充值：与 Debit 相同的加锁流程，credits_delta 为正，并写入一条充值记录；不校验余额
func (uc *CreditUseCase) Grant(ctx context.Context, req *GrantRequest) (*MutationResult, error) {
	startTime := time.Now()
	defer func() {
		uc.metrics.MutationDuration.WithLabelValues(constants.MutationKindGrant).Observe(time.Since(startTime).Seconds())
	}()

	if req == nil || req.OrganizationID == "" {
		uc.metrics.MutationTotal.WithLabelValues(constants.MutationKindGrant, constants.MutationResultInvalid).Inc()
		return nil, creditErrors.InvalidArgument("organization_id is required")
	}
	if req.Amount <= 0 {
		uc.metrics.MutationTotal.WithLabelValues(constants.MutationKindGrant, constants.MutationResultInvalid).Inc()
		return nil, creditErrors.InvalidAmount(req.Amount)
	}

	var replayed bool
	entry, err := uc.repo.WithLockedBalance(ctx, req.OrganizationID, req.RequestID, func(current *LockedBalance) (*Mutation, error) {
		if current.Replay != nil {
			if current.Replay.CreditsDelta != req.Amount || current.Replay.ActionType != constants.ActionTypeAdminGrant {
				return nil, creditErrors.IdempotencyConflict(req.RequestID)
			}
			replayed = true
			return nil, nil
		}
		newBalance := current.Balance + req.Amount
		return &Mutation{
			NewBalance: newBalance,
			Entry: &CreditLedgerEntry{
				OrganizationID: req.OrganizationID,
				UserID:         req.GrantedBy,
				ActionType:     constants.ActionTypeAdminGrant,
				CreditsDelta:   req.Amount,
				BalanceAfter:   newBalance,
				RequestID:      req.RequestID,
				Metadata:       req.Metadata,
			},
			Grant: &CreditGrant{
				OrganizationID: req.OrganizationID,
				Amount:         req.Amount,
				GrantedBy:      req.GrantedBy,
				Reason:         req.Reason,
				Metadata:       req.Metadata,
			},
		}, nil
	})
	if err != nil {
		uc.metrics.MutationTotal.WithLabelValues(constants.MutationKindGrant, mutationFailureResult(err)).Inc()
		uc.log.WithContext(ctx).Errorf("Grant failed: org=%s, amount=%d, error=%v", req.OrganizationID, req.Amount, err)
		return nil, wrapStorage(err)
	}

	return uc.committed(ctx, constants.MutationKindGrant, entry, replayed), nil
}

// committed 提交成功后的指标与事件
func (uc *CreditUseCase) committed(ctx context.Context, kind string, entry *CreditLedgerEntry, replayed bool) *MutationResult {
	res := &MutationResult{
		LedgerEntryID: entry.ID,
		CreditsDelta:  entry.CreditsDelta,
		BalanceAfter:  entry.BalanceAfter,
		Replayed:      replayed,
	}
	if replayed {
		uc.metrics.MutationTotal.WithLabelValues(kind, constants.MutationResultReplayed).Inc()
		uc.log.WithContext(ctx).Infof("%s replayed: org=%s, request_id=%s, entry=%s", kind, entry.OrganizationID, entry.RequestID, entry.ID)
		return res
	}

	uc.metrics.MutationTotal.WithLabelValues(kind, constants.MutationResultSuccess).Inc()
	credits := entry.CreditsDelta
	if credits < 0 {
		credits = -credits
	}
	uc.metrics.MutationCredits.WithLabelValues(kind, entry.Platform).Add(float64(credits))
	lowAlert := uc.metrics.BalanceLowAlert.WithLabelValues(entry.OrganizationID)
	if entry.BalanceAfter < uc.conf.BalanceLowThreshold {
		lowAlert.Set(1)
	} else {
		lowAlert.Set(0)
	}

	uc.publish(ctx, &LedgerEvent{
		Type:           constants.EventTypeLedgerEntry,
		EntryID:        entry.ID,
		OrganizationID: entry.OrganizationID,
		UserID:         entry.UserID,
		ArticleID:      entry.ArticleID,
		ActionType:     entry.ActionType,
		Platform:       entry.Platform,
		CreditsDelta:   entry.CreditsDelta,
		BalanceAfter:   entry.BalanceAfter,
		RequestID:      entry.RequestID,
		Metadata:       entry.Metadata,
		OccurredAt:     entry.CreatedAt,
	})
	return res
}

// debitFailed 记录扣费失败；已生成制品但积分不足时发送 debit_rejected 事件，由内容侧把制品标记为未付费
func (uc *CreditUseCase) debitFailed(ctx context.Context, req *DebitRequest, actionType string, required int64, err error) error {
	uc.metrics.MutationTotal.WithLabelValues(constants.MutationKindDebit, mutationFailureResult(err)).Inc()

	if creditErrors.IsInsufficientCredits(err) {
		_, available, _ := creditErrors.InsufficientDetail(err)
		uc.log.WithContext(ctx).Warnf("Debit rejected: org=%s, required=%d, available=%d, artifact=%s",
			req.OrganizationID, required, available, req.ArtifactID)
		if req.ArtifactID != "" {
			uc.publish(ctx, &LedgerEvent{
				Type:           constants.EventTypeDebitRejected,
				OrganizationID: req.OrganizationID,
				UserID:         req.UserID,
				ArticleID:      req.ArtifactID,
				ActionType:     actionType,
				Platform:       req.Platform,
				BalanceAfter:   available,
				Required:       required,
				Available:      available,
				RequestID:      req.RequestID,
				Metadata:       req.Metadata,
				OccurredAt:     time.Now(),
			})
		}
		return err
	}

	uc.log.WithContext(ctx).Errorf("Debit failed: org=%s, required=%d, error=%v", req.OrganizationID, required, err)
	return wrapStorage(err)
}

func (uc *CreditUseCase) publish(ctx context.Context, event *LedgerEvent) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, event); err != nil {
		uc.metrics.EventPublishTotal.WithLabelValues(event.Type, constants.MutationResultError).Inc()
		uc.log.WithContext(ctx).Warnf("publish ledger event failed: type=%s, org=%s, error=%v", event.Type, event.OrganizationID, err)
		return
	}
	uc.metrics.EventPublishTotal.WithLabelValues(event.Type, constants.MutationResultSuccess).Inc()
}

func actionTypeOrDefault(actionType string) string {
	if actionType == "" {
		return constants.ActionTypeArticleGeneration
	}
	return actionType
}

func mutationFailureResult(err error) string {
	switch {
	case creditErrors.IsInsufficientCredits(err):
		return constants.MutationResultInsufficient
	case creditErrors.IsCallerError(err):
		return constants.MutationResultInvalid
	}
	return constants.MutationResultError
}

// wrapStorage 非业务错误统一包装为 STORAGE_FAILURE；已带 reason 的错误原样返回
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	if creditErrors.IsCreditError(err) {
		return err
	}
	return creditErrors.StorageFailure(err)
}
