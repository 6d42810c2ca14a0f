package biz

import (
	"context"
	"time"

	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// CreditGrant 管理员充值记录，与一条正数账本记录一一对应
type CreditGrant struct {
	ID             string
	OrganizationID string
	LedgerEntryID  string
	Amount         int64
	GrantedBy      string
	Reason         string
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}

type operatorKey struct{}

// WithOperator 在 context 中写入已认证的操作人 ID
func WithOperator(ctx context.Context, operatorID string) context.Context {
	if operatorID == "" {
		return ctx
	}
	return context.WithValue(ctx, operatorKey{}, operatorID)
}

// OperatorFromContext 读取操作人 ID，没有时返回空串
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey{}).(string); ok {
		return v
	}
	return ""
}

// GrantUseCase 充值服务：参数校验 + 操作人解析，余额变更交给 CreditUseCase
type GrantUseCase struct {
	credit *CreditUseCase
	log    *log.Helper
}

// NewGrantUseCase 创建充值 UseCase
func NewGrantUseCase(credit *CreditUseCase, logger log.Logger) *GrantUseCase {
	return &GrantUseCase{
		credit: credit,
		log:    log.NewHelper(logger),
	}
}

// Grant 充值
func (uc *GrantUseCase) Grant(ctx context.Context, req *GrantRequest) (*MutationResult, error) {
	if req == nil {
		return nil, creditErrors.InvalidArgument("grant request is required")
	}
	if req.Amount <= 0 {
		return nil, creditErrors.InvalidAmount(req.Amount)
	}
	if req.GrantedBy == "" {
		req.GrantedBy = OperatorFromContext(ctx)
	}
	res, err := uc.credit.Grant(ctx, req)
	if err != nil {
		return nil, err
	}
	uc.log.WithContext(ctx).Infof("credits granted: org=%s, amount=%d, granted_by=%s, balance_after=%d, replayed=%t",
		req.OrganizationID, req.Amount, req.GrantedBy, res.BalanceAfter, res.Replayed)
	return res, nil
}

// HandleCommand 处理 MQ 下发的充值指令
func (uc *GrantUseCase) HandleCommand(ctx context.Context, cmd *GrantCommand) (*MutationResult, error) {
	return uc.Grant(ctx, &GrantRequest{
		OrganizationID: cmd.OrganizationID,
		Amount:         cmd.Amount,
		GrantedBy:      cmd.GrantedBy,
		Reason:         cmd.Reason,
		Metadata:       cmd.Metadata,
		RequestID:      cmd.RequestID,
	})
}
