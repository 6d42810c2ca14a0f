package service

import (
	"context"
	"time"

	v1 "credit-service/api/credit/v1"
	"credit-service/internal/biz"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// CreditService 积分服务：余额、预检、扣费、充值、账本与价格表
type CreditService struct {
	credit    *biz.CreditUseCase
	grant     *biz.GrantUseCase
	ledger    *biz.LedgerUseCase
	pricing   *biz.PricingUseCase
	reconcile *biz.ReconcileUseCase
	log       *log.Helper
}

// NewCreditService 创建 CreditService
func NewCreditService(
	credit *biz.CreditUseCase,
	grant *biz.GrantUseCase,
	ledger *biz.LedgerUseCase,
	pricing *biz.PricingUseCase,
	reconcile *biz.ReconcileUseCase,
	logger log.Logger,
) *CreditService {
	return &CreditService{
		credit:    credit,
		grant:     grant,
		ledger:    ledger,
		pricing:   pricing,
		reconcile: reconcile,
		log:       log.NewHelper(logger),
	}
}

// GetBalance 获取余额
func (s *CreditService) GetBalance(ctx context.Context, req *v1.GetBalanceRequest) (*v1.GetBalanceReply, error) {
	balance, err := s.credit.GetBalance(ctx, req.OrganizationId)
	if err != nil {
		return nil, err
	}
	return &v1.GetBalanceReply{
		OrganizationId: req.OrganizationId,
		Balance:        balance,
	}, nil
}

// CheckCredits 预检（结果仅供参考，扣费时会重新校验）
func (s *CreditService) CheckCredits(ctx context.Context, req *v1.CheckCreditsRequest) (*v1.CheckCreditsReply, error) {
	check, err := s.credit.CheckSufficientCredits(ctx, &biz.CheckRequest{
		OrganizationID:  req.OrganizationId,
		ActionType:      req.ActionType,
		Platform:        req.Platform,
		RequiredCredits: req.RequiredCredits,
	})
	if err != nil {
		return nil, err
	}
	return &v1.CheckCreditsReply{
		Sufficient: check.Sufficient,
		Balance:    check.Balance,
		Required:   check.Required,
	}, nil
}

// Debit 扣费
func (s *CreditService) Debit(ctx context.Context, req *v1.DebitRequest) (*v1.MutationReply, error) {
	res, err := s.credit.Debit(ctx, &biz.DebitRequest{
		OrganizationID:  req.OrganizationId,
		UserID:          req.UserId,
		ActionType:      req.ActionType,
		Platform:        req.Platform,
		RequiredCredits: req.RequiredCredits,
		ArtifactID:      req.ArticleId,
		Metadata:        req.Metadata,
		RequestID:       req.RequestId,
	})
	if err != nil {
		return nil, err
	}
	return toMutationReply(res), nil
}

// Grant 充值，操作人取自网关注入的请求头
func (s *CreditService) Grant(ctx context.Context, req *v1.GrantRequest) (*v1.MutationReply, error) {
	res, err := s.grant.Grant(ctx, &biz.GrantRequest{
		OrganizationID: req.OrganizationId,
		Amount:         req.Amount,
		Reason:         req.Reason,
		Metadata:       req.Metadata,
		RequestID:      req.RequestId,
	})
	if err != nil {
		return nil, err
	}
	return toMutationReply(res), nil
}

// ListLedger 分页查询账本
func (s *CreditService) ListLedger(ctx context.Context, req *v1.ListLedgerRequest) (*v1.ListLedgerReply, error) {
	filter := &biz.LedgerFilter{
		Platform:   req.Platform,
		ActionType: req.ActionType,
	}
	if req.StartDate != "" {
		start, _, err := parseDate(req.StartDate)
		if err != nil {
			return nil, creditErrors.InvalidArgument("invalid start_date: %s", req.StartDate)
		}
		filter.StartDate = &start
	}
	if req.EndDate != "" {
		end, dateOnly, err := parseDate(req.EndDate)
		if err != nil {
			return nil, creditErrors.InvalidArgument("invalid end_date: %s", req.EndDate)
		}
		if dateOnly {
			// 只给日期时包含当天
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		filter.EndDate = &end
	}

	page := int(req.Page)
	if page == 0 {
		page = 1
	}
	result, err := s.ledger.ListLedger(ctx, req.OrganizationId, filter, page, int(req.PageSize))
	if err != nil {
		return nil, err
	}

	reply := &v1.ListLedgerReply{
		Entries:    make([]*v1.LedgerEntry, 0, len(result.Entries)),
		Total:      result.Total,
		Page:       int32(result.Page),
		PageSize:   int32(result.PageSize),
		TotalPages: int32(result.TotalPages),
	}
	for _, e := range result.Entries {
		reply.Entries = append(reply.Entries, &v1.LedgerEntry{
			Id:           e.ID,
			UserId:       e.UserID,
			ArticleId:    e.ArticleID,
			ActionType:   e.ActionType,
			Platform:     e.Platform,
			CreditsDelta: e.CreditsDelta,
			BalanceAfter: e.BalanceAfter,
			RequestId:    e.RequestID,
			Metadata:     e.Metadata,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		})
	}
	return reply, nil
}

// ListPricing 列出价格表
func (s *CreditService) ListPricing(ctx context.Context, _ *v1.ListPricingRequest) (*v1.ListPricingReply, error) {
	items, err := s.pricing.ListPricing(ctx)
	if err != nil {
		return nil, err
	}
	reply := &v1.ListPricingReply{Items: make([]*v1.Pricing, 0, len(items))}
	for _, p := range items {
		reply.Items = append(reply.Items, toPricingReply(p))
	}
	return reply, nil
}

// UpsertPricing 新增或修改价格
func (s *CreditService) UpsertPricing(ctx context.Context, req *v1.UpsertPricingRequest) (*v1.Pricing, error) {
	p := &biz.CreditPricing{
		ActionType:      req.ActionType,
		Platform:        req.Platform,
		CreditsRequired: req.CreditsRequired,
	}
	if err := s.pricing.UpsertPricing(ctx, p); err != nil {
		return nil, err
	}
	return toPricingReply(p), nil
}

// Reconcile 单组织对账
func (s *CreditService) Reconcile(ctx context.Context, req *v1.ReconcileRequest) (*v1.ReconcileReply, error) {
	res, err := s.reconcile.Reconcile(ctx, req.OrganizationId)
	if err != nil {
		return nil, err
	}
	return &v1.ReconcileReply{
		OrganizationId: res.OrganizationID,
		Balance:        res.Balance,
		LedgerSum:      res.LedgerSum,
		Consistent:     res.Consistent,
	}, nil
}

func toMutationReply(res *biz.MutationResult) *v1.MutationReply {
	return &v1.MutationReply{
		LedgerEntryId: res.LedgerEntryID,
		CreditsDelta:  res.CreditsDelta,
		BalanceAfter:  res.BalanceAfter,
		Replayed:      res.Replayed,
	}
}

func toPricingReply(p *biz.CreditPricing) *v1.Pricing {
	reply := &v1.Pricing{
		ActionType:      p.ActionType,
		Platform:        p.Platform,
		CreditsRequired: p.CreditsRequired,
	}
	if !p.UpdatedAt.IsZero() {
		reply.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return reply
}

// parseDate 支持 2006-01-02 与 RFC3339
func parseDate(value string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(constants.TimeFormatDate, value, time.Local); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	return t, false, err
}
