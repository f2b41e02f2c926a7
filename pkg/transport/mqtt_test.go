package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/log"
	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/wire"
)

// fakeBroker routes publishes to subscribers synchronously.
type fakeBroker struct {
	mu        sync.Mutex
	subs      map[string]pahomqtt.MessageHandler
	published []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string]pahomqtt.MessageHandler)}
}

func (b *fakeBroker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	b.published = append(b.published, topic)
	h := b.subs[topic]
	b.mu.Unlock()
	if h != nil {
		h(nil, &fakeMessage{topic: topic, payload: payload})
	}
}

func (b *fakeBroker) subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *fakeBroker) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

type fakeClient struct {
	broker       *fakeBroker
	disconnected atomic.Bool
}

func (c *fakeClient) IsConnected() bool { return !c.disconnected.Load() }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	c.broker.deliver(topic, payload.([]byte))
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	c.broker.mu.Lock()
	c.broker.subs[topic] = cb
	c.broker.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.broker.mu.Lock()
	for _, topic := range topics {
		delete(c.broker.subs, topic)
	}
	c.broker.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected.Store(true) }

type doneToken struct{ err error }

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                 { return t.err }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// routedClient behaves like a paho client with ordered delivery: inbound
// messages and publish acknowledgements are handled one at a time on a
// single router goroutine, so a publish token completes only after the
// handler running on the router returns.
type routedClient struct {
	fakeClient
	jobs chan func()
	stop chan struct{}
	once sync.Once
}

func newRoutedClient(b *fakeBroker) *routedClient {
	c := &routedClient{
		fakeClient: fakeClient{broker: b},
		jobs:       make(chan func(), 64),
		stop:       make(chan struct{}),
	}
	go func() {
		for {
			select {
			case job := <-c.jobs:
				job()
			case <-c.stop:
				return
			}
		}
	}()
	return c
}

func (c *routedClient) Publish(topic string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	c.broker.deliver(topic, payload.([]byte))
	tok := &chanToken{done: make(chan struct{})}
	c.jobs <- func() { close(tok.done) }
	return tok
}

func (c *routedClient) Subscribe(topic string, qos byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	return c.fakeClient.Subscribe(topic, qos, func(cl pahomqtt.Client, msg pahomqtt.Message) {
		c.jobs <- func() { cb(cl, msg) }
	})
}

func (c *routedClient) Disconnect(q uint) {
	c.fakeClient.Disconnect(q)
	c.once.Do(func() { close(c.stop) })
}

type chanToken struct{ done chan struct{} }

func (t *chanToken) Wait() bool { <-t.done; return true }
func (t *chanToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *chanToken) Error() error          { return nil }
func (t *chanToken) Done() <-chan struct{} { return t.done }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func serveMQTT(t *testing.T, m *MQTT, h cmdtree.Handler) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- m.Serve(context.Background(), h) }()
	t.Cleanup(func() { _ = m.Close() })
	return done
}

func TestMQTTTopicLayout(t *testing.T) {
	assert.Equal(t, "icd/devices/7/host/command", MQTTTopic("", 7, log.RoleOriginator, wire.KindCommand))
	assert.Equal(t, "site/7/mirror/result", MQTTTopic("site", 7, log.RoleMirror, wire.KindResult))
}

func TestMQTTRoundTrip(t *testing.T) {
	broker := newFakeBroker()
	host := NewMQTT(&fakeClient{broker: broker}, MQTTConfig{DeviceID: 7, Role: log.RoleOriginator})
	mirror := NewMQTT(&fakeClient{broker: broker}, MQTTConfig{DeviceID: 7, Role: log.RoleMirror})

	hostH := newTestHandler(powerReply)
	mirrorH := newTestHandler(nil)
	serveMQTT(t, host, hostH)
	serveMQTT(t, mirror, mirrorH)
	require.Eventually(t, func() bool { return broker.subscriptions() == 4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, mirror.SendCommand(context.Background(), cmdtree.NewCommand("root").GetProperty("Power")))

	assert.Equal(t, "root", receive(t, hostH.commands).Name)
	v, ok := receive(t, mirrorH.results).Property("Power")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v.Value)
	assert.Equal(t, []string{"icd/devices/7/mirror/command", "icd/devices/7/host/result"}, broker.topics())
}

func TestMQTTPushWhileHandlingCommand(t *testing.T) {
	broker := newFakeBroker()
	host := NewMQTT(newRoutedClient(broker), MQTTConfig{DeviceID: 3, Role: log.RoleOriginator, QoS: 1})
	mirror := NewMQTT(newRoutedClient(broker), MQTTConfig{DeviceID: 3, Role: log.RoleMirror, QoS: 1})

	pushed := make(chan error, 1)
	hostH := newTestHandler(func(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
		// A state change raised by the command is pushed before the reply.
		start := time.Now()
		err := host.SendCommand(context.Background(), cmdtree.NewCommand("root").ChangedProperty("Power", 1))
		if err == nil && time.Since(start) > time.Second {
			err = context.DeadlineExceeded
		}
		pushed <- err
		return powerReply(cmd)
	})
	mirrorH := newTestHandler(nil)
	serveMQTT(t, host, hostH)
	serveMQTT(t, mirror, mirrorH)
	require.Eventually(t, func() bool { return broker.subscriptions() == 4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, mirror.SendCommand(context.Background(), cmdtree.NewCommand("root").Call("PowerOn")))

	assert.NoError(t, receive(t, pushed))
	assert.Equal(t, "root", receive(t, hostH.commands).Name)
	push := receive(t, mirrorH.commands)
	v, ok := push.Property("Power")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v.Value)
	_, ok = receive(t, mirrorH.results).Property("Power")
	assert.True(t, ok)
}

func TestMQTTIgnoresOwnTopics(t *testing.T) {
	broker := newFakeBroker()
	host := NewMQTT(&fakeClient{broker: broker}, MQTTConfig{DeviceID: 1, Role: log.RoleOriginator})
	hostH := newTestHandler(powerReply)
	serveMQTT(t, host, hostH)
	require.Eventually(t, func() bool { return broker.subscriptions() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, host.SendCommand(context.Background(), cmdtree.NewCommand("push")))
	assert.Len(t, hostH.commands, 0)
}

func TestMQTTDropsBadPayloads(t *testing.T) {
	broker := newFakeBroker()
	logger := &capturingLogger{}
	host := NewMQTT(&fakeClient{broker: broker}, MQTTConfig{DeviceID: 2, ProtocolLogger: logger})
	serveMQTT(t, host, newTestHandler(func(*cmdtree.CommandNode) *cmdtree.ResultNode {
		panic("boom")
	}))
	require.Eventually(t, func() bool { return broker.subscriptions() == 2 }, time.Second, 5*time.Millisecond)

	topic := MQTTTopic("", 2, log.RoleMirror, wire.KindCommand)
	broker.deliver(topic, []byte{0xff})

	valid, err := wire.EncodeFrame(wire.NewCommandFrame(1, cmdtree.NewCommand("root")))
	require.NoError(t, err)
	broker.deliver(topic, valid)

	errorEvents := func() []log.Event {
		var errs []log.Event
		for _, e := range logger.Events() {
			if e.Category == log.CategoryError {
				errs = append(errs, e)
			}
		}
		return errs
	}
	require.Eventually(t, func() bool { return len(errorEvents()) == 2 }, time.Second, 5*time.Millisecond,
		"decode failure and handler panic")
	for _, e := range errorEvents() {
		assert.Equal(t, topic, e.Error.Context)
	}
}

func TestMQTTCloseEndsServe(t *testing.T) {
	broker := newFakeBroker()
	client := &fakeClient{broker: broker}
	m := NewMQTT(client, MQTTConfig{Role: log.RoleMirror})
	done := serveMQTT(t, m, newTestHandler(nil))
	require.Eventually(t, func() bool { return broker.subscriptions() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
	assert.NoError(t, receive(t, done))
	assert.Zero(t, broker.subscriptions())
	assert.True(t, client.disconnected.Load())
	assert.ErrorIs(t, m.SendCommand(context.Background(), cmdtree.NewCommand("x")), ErrClosed)
}

func TestMQTTRequiresConnection(t *testing.T) {
	client := &fakeClient{broker: newFakeBroker()}
	client.disconnected.Store(true)
	m := NewMQTT(client, MQTTConfig{})
	assert.ErrorIs(t, m.SendCommand(context.Background(), cmdtree.NewCommand("x")), ErrNotConnected)
	assert.ErrorIs(t, m.Serve(context.Background(), nil), ErrNoHandler)
}
