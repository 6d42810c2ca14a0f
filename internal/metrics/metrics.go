package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CreditMetrics 积分服务指标
type CreditMetrics struct {
	// 额度检查（非加锁的预检）
	CheckTotal    *prometheus.CounterVec // 按 platform、result
	CheckDuration *prometheus.HistogramVec

	// 余额变更（扣费 / 充值）
	MutationTotal    *prometheus.CounterVec   // 按 kind、result
	MutationDuration *prometheus.HistogramVec // 按 kind
	MutationCredits  *prometheus.CounterVec   // 按 kind、platform

	// 余额
	BalanceQueryTotal *prometheus.CounterVec // 按 source: cache/db
	BalanceLowAlert   *prometheus.GaugeVec   // 按 organization_id

	// 组织锁
	LockAcquireTotal    *prometheus.CounterVec // 按 result
	LockAcquireDuration prometheus.Histogram

	// 对账
	ReconcileMismatchTotal prometheus.Counter
	ReconcileLastRun       prometheus.Gauge

	// 账本事件
	EventPublishTotal *prometheus.CounterVec // 按 type、result
}

// NewCreditMetrics 创建积分服务指标
func NewCreditMetrics() *CreditMetrics {
	return &CreditMetrics{
		CheckTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_check_total",
				Help: "Total number of advisory credit checks",
			},
			[]string{"platform", "result"},
		),
		CheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_check_duration_seconds",
				Help:    "Duration of advisory credit checks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform"},
		),

		MutationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_mutation_total",
				Help: "Total number of balance mutations",
			},
			[]string{"kind", "result"}, // kind: debit/grant
		),
		MutationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_mutation_duration_seconds",
				Help:    "Duration of balance mutations including lock wait",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		MutationCredits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_mutation_credits_total",
				Help: "Total credits moved by committed mutations",
			},
			[]string{"kind", "platform"},
		),

		BalanceQueryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_balance_query_total",
				Help: "Total number of balance queries",
			},
			[]string{"source"},
		),
		BalanceLowAlert: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "credit_balance_low_alert",
				Help: "Set to 1 when the organization's last committed balance fell below the threshold",
			},
			[]string{"organization_id"},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_lock_acquire_total",
				Help: "Total number of organization lock acquisition attempts",
			},
			[]string{"result"},
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_lock_acquire_duration_seconds",
				Help:    "Duration of organization lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),

		ReconcileMismatchTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_reconcile_mismatch_total",
				Help: "Total number of organizations whose balance did not match the ledger sum",
			},
		),
		ReconcileLastRun: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "credit_reconcile_last_run_timestamp_seconds",
				Help: "Unix time of the last completed reconciliation run",
			},
		),

		EventPublishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_event_publish_total",
				Help: "Total number of ledger event publish attempts",
			},
			[]string{"type", "result"},
		),
	}
}

var (
	defaultMetrics *CreditMetrics
	once           sync.Once
)

// GetMetrics 获取全局指标实例
func GetMetrics() *CreditMetrics {
	once.Do(func() {
		defaultMetrics = NewCreditMetrics()
	})
	return defaultMetrics
}
