package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/wire"
)

// MQTT defaults.
const (
	// DefaultMQTTPrefix is the topic prefix when none is configured.
	DefaultMQTTPrefix = "icd/devices"

	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultKeepAlive         = 60 * time.Second
)

// MQTTClient is the part of a paho client the transport uses.
// pahomqtt.Client satisfies it.
type MQTTClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTConfig configures an MQTT transport.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// ClientID identifies the connection. Empty generates one.
	ClientID string

	Username string
	Password string

	// Prefix is the topic prefix. Empty uses DefaultMQTTPrefix.
	Prefix string

	// DeviceID selects the topic subtree.
	DeviceID int

	// Role is the local side. The transport publishes under its own role
	// and subscribes to the other.
	Role log.Role

	// QoS for publishes and subscriptions.
	QoS byte

	// SessionID tags protocol events. Empty generates a UUID.
	SessionID string

	// ProtocolLogger receives frame and error events.
	ProtocolLogger log.Logger

	// Logger receives diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// MQTT exchanges frames through a broker.
type MQTT struct {
	client MQTTClient
	cfg    MQTTConfig
	plog   log.Logger
	fl     frameLog

	seq       atomic.Uint32
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	subscribed []string

	inbox mqttInbox
}

// mqttInbox queues inbound messages between paho's router and Serve.
type mqttInbox struct {
	mu    sync.Mutex
	msgs  []pahomqtt.Message
	ready chan struct{}
}

func (q *mqttInbox) push(msg pahomqtt.Message) {
	q.mu.Lock()
	q.msgs = append(q.msgs, msg)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *mqttInbox) take() []pahomqtt.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs := q.msgs
	q.msgs = nil
	return msgs
}

// MQTTTopic returns the topic on which role publishes frames of kind for
// a device.
func MQTTTopic(prefix string, deviceID int, role log.Role, kind wire.FrameKind) string {
	if prefix == "" {
		prefix = DefaultMQTTPrefix
	}
	return fmt.Sprintf("%s/%d/%s/%s", prefix, deviceID, roleSegment(role), strings.ToLower(kind.String()))
}

func roleSegment(r log.Role) string {
	if r == log.RoleMirror {
		return "mirror"
	}
	return "host"
}

func peerRole(r log.Role) log.Role {
	if r == log.RoleMirror {
		return log.RoleOriginator
	}
	return log.RoleMirror
}

// DialMQTT connects to the configured broker.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("icd-%s-%d-%s", roleSegment(cfg.Role), cfg.DeviceID, uuid.New().String()[:8])
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	// Handlers run on the router in arrival order; enqueue never blocks it.
	opts.SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if cfg.Logger != nil {
			cfg.Logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
		}
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: mqtt connect timeout after %v", ErrNotConnected, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return NewMQTT(client, cfg), nil
}

// NewMQTT wraps a connected client.
func NewMQTT(client MQTTClient, cfg MQTTConfig) *MQTT {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultMQTTPrefix
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	return &MQTT{
		client: client,
		cfg:    cfg,
		plog:   log.OrNoop(cfg.ProtocolLogger),
		fl:     frameLog{logger: cfg.ProtocolLogger, sessionID: cfg.SessionID, remote: cfg.Broker},
		done:   make(chan struct{}),
		inbox:  mqttInbox{ready: make(chan struct{}, 1)},
	}
}

// SendCommand publishes cmd on the local command topic and waits for the
// broker to accept it. It may be called while a command is being handled.
func (m *MQTT) SendCommand(ctx context.Context, cmd *cmdtree.CommandNode) error {
	data, err := wire.EncodeFrame(wire.NewCommandFrame(m.seq.Add(1), cmd))
	if err != nil {
		return err
	}
	token, err := m.publish(wire.KindCommand, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) publish(kind wire.FrameKind, data []byte) (pahomqtt.Token, error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}
	if !m.client.IsConnected() {
		return nil, ErrNotConnected
	}
	m.fl.log(data, log.DirectionOut)
	return m.client.Publish(MQTTTopic(m.cfg.Prefix, m.cfg.DeviceID, m.cfg.Role, kind), m.cfg.QoS, false, data), nil
}

// Serve subscribes to the peer's topics and delivers inbound frames to h
// until the transport is closed or ctx is done.
func (m *MQTT) Serve(ctx context.Context, h cmdtree.Handler) error {
	if h == nil {
		return ErrNoHandler
	}

	peer := peerRole(m.cfg.Role)
	topics := []string{
		MQTTTopic(m.cfg.Prefix, m.cfg.DeviceID, peer, wire.KindCommand),
		MQTTTopic(m.cfg.Prefix, m.cfg.DeviceID, peer, wire.KindResult),
	}
	handler := m.enqueue
	for _, topic := range topics {
		token := m.client.Subscribe(topic, m.cfg.QoS, handler)
		if !token.WaitTimeout(defaultPublishTimeout) {
			m.unsubscribe()
			return fmt.Errorf("mqtt subscribe timeout for %s", topic)
		}
		if err := token.Error(); err != nil {
			m.unsubscribe()
			return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
		}
		m.mu.Lock()
		m.subscribed = append(m.subscribed, topic)
		m.mu.Unlock()
	}
	if m.cfg.Logger != nil {
		m.cfg.Logger.Info("mqtt transport serving", "topics", topics)
	}

	defer m.unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case <-m.inbox.ready:
			for _, msg := range m.inbox.take() {
				m.dispatch(ctx, h, msg)
			}
		}
	}
}

// enqueue is the paho message handler. Paho calls it on its router
// goroutine, which also completes publish tokens, so it only queues the
// message for Serve.
func (m *MQTT) enqueue(_ pahomqtt.Client, msg pahomqtt.Message) {
	m.inbox.push(msg)
}

// dispatch decodes one inbound message and hands it to h. Command results
// are published on the local result topic.
func (m *MQTT) dispatch(ctx context.Context, h cmdtree.Handler, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			m.reportError(msg.Topic(), fmt.Errorf("handler panic: %v", r))
		}
	}()

	data := msg.Payload()
	m.fl.log(data, log.DirectionIn)
	f, err := wire.DecodeFrame(data)
	if err != nil {
		m.reportError(msg.Topic(), err)
		return
	}

	switch f.Kind {
	case wire.KindCommand:
		res := h.HandleCommand(ctx, f.Command)
		if res == nil || res.IsEmpty() {
			return
		}
		reply, err := wire.EncodeFrame(wire.NewResultFrame(f.Seq, res))
		if err == nil {
			_, err = m.publish(wire.KindResult, reply)
		}
		if err != nil {
			m.reportError(msg.Topic(), err)
		}
	case wire.KindResult:
		h.HandleResult(ctx, f.Result)
	}
}

func (m *MQTT) unsubscribe() {
	m.mu.Lock()
	topics := m.subscribed
	m.subscribed = nil
	m.mu.Unlock()

	if len(topics) == 0 || !m.client.IsConnected() {
		return
	}
	token := m.client.Unsubscribe(topics...)
	if !token.WaitTimeout(defaultPublishTimeout) && m.cfg.Logger != nil {
		m.cfg.Logger.Warn("mqtt unsubscribe timeout", "topics", topics)
	}
}

// Close stops Serve and disconnects the client.
func (m *MQTT) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.unsubscribe()
		m.client.Disconnect(defaultDisconnectQuiesce)
	})
	return nil
}

func (m *MQTT) reportError(topic string, err error) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Warn("mqtt frame dropped", "topic", topic, "error", err)
	}
	m.plog.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  m.cfg.SessionID,
		Direction:  log.DirectionIn,
		Layer:      log.LayerWire,
		Category:   log.CategoryError,
		LocalRole:  m.cfg.Role,
		RemoteAddr: m.cfg.Broker,
		DeviceID:   m.cfg.DeviceID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: topic,
		},
	})
}
