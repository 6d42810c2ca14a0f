package v1

import (
	context "context"

	http "github.com/go-kratos/kratos/v2/transport/http"
)

const OperationCreditServiceGetBalance = "/api.credit.v1.CreditService/GetBalance"
const OperationCreditServiceCheckCredits = "/api.credit.v1.CreditService/CheckCredits"
const OperationCreditServiceDebit = "/api.credit.v1.CreditService/Debit"
const OperationCreditServiceGrant = "/api.credit.v1.CreditService/Grant"
const OperationCreditServiceListLedger = "/api.credit.v1.CreditService/ListLedger"
const OperationCreditServiceListPricing = "/api.credit.v1.CreditService/ListPricing"
const OperationCreditServiceUpsertPricing = "/api.credit.v1.CreditService/UpsertPricing"
const OperationCreditServiceReconcile = "/api.credit.v1.CreditService/Reconcile"

// RegisterCreditServiceHTTPServer 注册积分服务路由
func RegisterCreditServiceHTTPServer(s *http.Server, srv CreditServiceHTTPServer) {
	r := s.Route("/")
	r.GET("/v1/organizations/{organization_id}/credits/balance", _CreditService_GetBalance0_HTTP_Handler(srv))
	r.GET("/v1/organizations/{organization_id}/credits/check", _CreditService_CheckCredits0_HTTP_Handler(srv))
	r.POST("/v1/organizations/{organization_id}/credits/debit", _CreditService_Debit0_HTTP_Handler(srv))
	r.POST("/v1/organizations/{organization_id}/credits/grants", _CreditService_Grant0_HTTP_Handler(srv))
	r.GET("/v1/organizations/{organization_id}/credits/ledger", _CreditService_ListLedger0_HTTP_Handler(srv))
	r.GET("/v1/organizations/{organization_id}/credits/reconciliation", _CreditService_Reconcile0_HTTP_Handler(srv))
	r.GET("/v1/credit-pricing", _CreditService_ListPricing0_HTTP_Handler(srv))
	r.PUT("/v1/credit-pricing", _CreditService_UpsertPricing0_HTTP_Handler(srv))
}

func _CreditService_GetBalance0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetBalanceRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceGetBalance)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetBalance(ctx, req.(*GetBalanceRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*GetBalanceReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_CheckCredits0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CheckCreditsRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceCheckCredits)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CheckCredits(ctx, req.(*CheckCreditsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*CheckCreditsReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_Debit0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in DebitRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceDebit)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Debit(ctx, req.(*DebitRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*MutationReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_Grant0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GrantRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceGrant)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Grant(ctx, req.(*GrantRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*MutationReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_ListLedger0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListLedgerRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceListLedger)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListLedger(ctx, req.(*ListLedgerRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ListLedgerReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_Reconcile0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ReconcileRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceReconcile)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Reconcile(ctx, req.(*ReconcileRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ReconcileReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_ListPricing0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListPricingRequest
		http.SetOperation(ctx, OperationCreditServiceListPricing)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListPricing(ctx, req.(*ListPricingRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ListPricingReply)
		return ctx.Result(200, reply)
	}
}

func _CreditService_UpsertPricing0_HTTP_Handler(srv CreditServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in UpsertPricingRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCreditServiceUpsertPricing)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.UpsertPricing(ctx, req.(*UpsertPricingRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*Pricing)
		return ctx.Result(200, reply)
	}
}
