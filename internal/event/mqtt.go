package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/config"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/middleware"
)

const publishTimeout = 5 * time.Second

// mqttClient paho客户端的最小子集，便于测试注入。
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher 将领域事件以JSON发布到 <topic_prefix>/<event_name>。
// 发布链路由熔断器保护：broker不可用时快速失败，不拖垮写路径。
type MQTTPublisher struct {
	client      mqttClient
	topicPrefix string
	breaker     *middleware.CircuitBreaker
}

// NewMQTTPublisher 连接broker并返回发布器。
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect mqtt broker %s: %w", cfg.Broker, token.Error())
	}

	return newMQTTPublisher(client, cfg.TopicPrefix), nil
}

func newMQTTPublisher(client mqttClient, topicPrefix string) *MQTTPublisher {
	return &MQTTPublisher{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		breaker:     middleware.NewCircuitBreaker("mqtt-events", 5, 30*time.Second),
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.Name, err)
	}

	topic := p.Topic(e.Name)
	return p.breaker.Call(ctx, func() error {
		token := p.client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	})
}

// Topic 事件名到MQTT主题的映射
func (p *MQTTPublisher) Topic(name string) string {
	if p.topicPrefix == "" {
		return name
	}
	return p.topicPrefix + "/" + name
}

// Close 断开broker连接
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
