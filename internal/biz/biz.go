package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCreditConfig,
	NewTablePricingResolver,
	NewPricingResolver,
	NewCreditUseCase, // 唯一的余额写入口
	NewGrantUseCase,
	NewLedgerUseCase,
	NewPricingUseCase,
	NewReconcileUseCase,
)
