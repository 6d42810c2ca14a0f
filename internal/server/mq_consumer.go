package server

import (
	"context"
	"encoding/json"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	creditErrors "credit-service/internal/errors"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

const propertyOriginMessageID = "ORIGIN_MESSAGE_ID"

// MQConsumerServer 消费 RocketMQ 中的充值指令
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	grant   *biz.GrantUseCase
	topic   string
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer creates a RocketMQ consumer server
func NewMQConsumerServer(c *conf.Bootstrap, grant *biz.GrantUseCase, logger log.Logger) *MQConsumerServer {
	helper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled || c.Data.Rocketmq.GrantTopic == "" {
		return &MQConsumerServer{grant: grant, log: helper, enabled: false}
	}
	mq := c.Data.Rocketmq

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		consumer.WithGroupName(mq.GroupName),
		consumer.WithRetry(int(mq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(16),
	)
	if err != nil {
		helper.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{grant: grant, log: helper, enabled: false}
	}

	return &MQConsumerServer{
		c:       r,
		grant:   grant,
		topic:   mq.GrantTopic,
		log:     helper,
		enabled: true,
	}
}

// Start starts the consumer
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.topic)

	if err := s.c.Subscribe(s.topic, consumer.MessageSelector{}, s.handler); err != nil {
		// RocketMQ 不可用时不阻止 HTTP 服务启动
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop stops the consumer
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

// handler 逐条执行充值指令；调用方错误（金额非法、幂等冲突等）直接确认，其余错误整批稍后重试。
// 重试依赖 request_id 幂等，已成功的指令重放时不会重复入账。
func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		var cmd biz.GrantCommand
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			s.log.Errorf("Unmarshal grant command failed: %v, body: %s", err, string(msg.Body))
			continue
		}
		if cmd.RequestID == "" {
			cmd.RequestID = messageID(msg)
		}

		if _, err := s.grant.HandleCommand(ctx, &cmd); err != nil {
			if creditErrors.IsCallerError(err) {
				s.log.Warnf("drop grant command: org=%s, request_id=%s, error=%v", cmd.OrganizationID, cmd.RequestID, err)
				continue
			}
			s.log.Errorf("grant command failed: org=%s, request_id=%s, error=%v", cmd.OrganizationID, cmd.RequestID, err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}

// messageID 重投的消息 MsgId 会变化，优先使用原始消息 ID
func messageID(msg *primitive.MessageExt) string {
	if id := msg.GetProperty(propertyOriginMessageID); id != "" {
		return id
	}
	return msg.MsgId
}
