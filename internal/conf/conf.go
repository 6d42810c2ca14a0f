package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 配置根节点（configs/config.yaml）
type Bootstrap struct {
	Server *Server `json:"server"`
	Data   *Data   `json:"data"`
	Credit *Credit `json:"credit"`
	Log    *Log    `json:"log"`
	Cron   *Cron   `json:"cron"`
}

// Server 服务端配置
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP HTTP 服务配置
type HTTP struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
	Lock     *Lock     `json:"lock"`
}

// Database 数据库配置
type Database struct {
	// Driver: mysql | postgres | sqlite
	Driver       string `json:"driver"`
	Source       string `json:"source"`
	AutoMigrate  bool   `json:"auto_migrate"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string   `json:"addr"`
	Password     string   `json:"password"`
	DB           int      `json:"db"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	// BalanceCacheTTL 余额缓存过期时间，为 0 时使用默认值
	BalanceCacheTTL Duration `json:"balance_cache_ttl"`
}

// Rocketmq RocketMQ 配置
type Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	// LedgerTopic 账本事件 topic
	LedgerTopic string `json:"ledger_topic"`
	// GrantTopic 充值指令 topic（消费端）
	GrantTopic string `json:"grant_topic"`
	RetryTimes int32  `json:"retry_times"`
}

// Lock 组织级互斥锁配置
type Lock struct {
	// Provider: redsync | local
	Provider string   `json:"provider"`
	Expiry   Duration `json:"expiry"`
	Tries    int      `json:"tries"`
}

// Credit 积分业务配置
type Credit struct {
	// PricingPolicy: table | supplied | supplied_or_table
	PricingPolicy       string        `json:"pricing_policy"`
	PricingCacheTTL     Duration      `json:"pricing_cache_ttl"`
	Prices              []*PriceEntry `json:"prices"`
	DefaultPageSize     int           `json:"default_page_size"`
	MaxPageSize         int           `json:"max_page_size"`
	BalanceLowThreshold int64         `json:"balance_low_threshold"`
}

// PriceEntry 价格表种子数据
type PriceEntry struct {
	ActionType      string `json:"action_type"`
	Platform        string `json:"platform"`
	CreditsRequired int64  `json:"credits_required"`
}

// Log 日志配置
type Log struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"`
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"`
	MaxAge     int    `json:"max_age"`
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
}

// Cron 定时任务配置
type Cron struct {
	ReconcileSpec    string   `json:"reconcile_spec"`
	ReconcileTimeout Duration `json:"reconcile_timeout"`
}

// Duration 支持 "1s" / "500ms" 形式的配置时长
type Duration struct {
	time.Duration
}

// AsDuration 与 durationpb 保持相同的调用方式
func (d Duration) AsDuration() time.Duration {
	return d.Duration
}

// UnmarshalJSON 解析字符串或纳秒整数
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		if value == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	case nil:
		d.Duration = 0
		return nil
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
}

// MarshalJSON 输出字符串形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
