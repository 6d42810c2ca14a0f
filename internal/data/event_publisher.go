package data

import (
	"context"
	"encoding/json"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// defaultLedgerTopic 账本事件默认 topic
const defaultLedgerTopic = "credit_ledger_events"

// mqEventPublisher 把账本事件发送到 RocketMQ，以组织 ID 作为消息 key
type mqEventPublisher struct {
	producer rocketmq.Producer
	topic    string
	log      *log.Helper
}

// noopEventPublisher 未启用 RocketMQ 时只打日志
type noopEventPublisher struct {
	log *log.Helper
}

// NewLedgerEventPublisher 创建账本事件发布器
func NewLedgerEventPublisher(c *conf.Bootstrap, p rocketmq.Producer, logger log.Logger) biz.LedgerEventPublisher {
	if p == nil {
		return &noopEventPublisher{log: log.NewHelper(logger)}
	}
	topic := defaultLedgerTopic
	if c.Data != nil && c.Data.Rocketmq != nil && c.Data.Rocketmq.LedgerTopic != "" {
		topic = c.Data.Rocketmq.LedgerTopic
	}
	return &mqEventPublisher{
		producer: p,
		topic:    topic,
		log:      log.NewHelper(logger),
	}
}

// Publish 同步发送
func (p *mqEventPublisher) Publish(ctx context.Context, event *biz.LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	msg := primitive.NewMessage(p.topic, body)
	msg.WithKeys([]string{event.OrganizationID})
	msg.WithTag(event.Type)

	res, err := p.producer.SendSync(ctx, msg)
	if err != nil {
		return err
	}
	if res.Status != primitive.SendOK {
		return fmt.Errorf("send ledger event failed: status=%d", res.Status)
	}
	return nil
}

func (p *noopEventPublisher) Publish(ctx context.Context, event *biz.LedgerEvent) error {
	p.log.WithContext(ctx).Debugf("ledger event (mq disabled): type=%s, org=%s, entry=%s, delta=%d",
		event.Type, event.OrganizationID, event.EntryID, event.CreditsDelta)
	return nil
}
