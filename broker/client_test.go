package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{Host: "localhost", User: "guest", Pass: "guest", Port: 5672, VHost: "/", Heartbeat: 60}
}

func TestConnectSuccess(t *testing.T) {
	dialer, _ := NewMockAMQPDialer()
	c := NewClientWithDialer(testConfig(), dialer)

	require.NoError(t, c.Connect())
	assert.True(t, dialer.DialCalled)
}

func TestConnectDialFailure(t *testing.T) {
	dialer := NewMockAMQPDialerWithError(errors.New("refused"))
	c := NewClientWithDialer(testConfig(), dialer)

	err := c.Connect()
	assert.Error(t, err)
}

func TestConnectChannelFailure(t *testing.T) {
	dialer := NewMockAMQPDialerWithChannelError()
	c := NewClientWithDialer(testConfig(), dialer)

	err := c.Connect()
	assert.Error(t, err)
}

func TestDeclareExchangeIsDirectDurable(t *testing.T) {
	dialer, ch := NewMockAMQPDialer()
	c := NewClientWithDialer(testConfig(), dialer)
	require.NoError(t, c.Connect())

	require.NoError(t, c.DeclareExchange("wx"))
	assert.Contains(t, ch.DeclaredExchanges, "wx")
}

func TestDeclareQueueAndBind(t *testing.T) {
	dialer, ch := NewMockAMQPDialer()
	c := NewClientWithDialer(testConfig(), dialer)
	require.NoError(t, c.Connect())

	queue := QueueName("wx", "listener")
	require.NoError(t, c.DeclareQueue(queue))
	require.NoError(t, c.Bind("wx", queue, ListenerRoutingKey()))

	assert.Contains(t, ch.DeclaredQueues, "wx.listener")
	assert.Contains(t, ch.BoundQueues, "wx.listener")
}

func TestQueueNameCanonicalization(t *testing.T) {
	assert.Equal(t, "wx.listener", QueueName("wx", "listener"))
}

func TestPublishSetsPersistentAndMandatory(t *testing.T) {
	dialer, ch := NewMockAMQPDialer()
	c := NewClientWithDialer(testConfig(), dialer)
	require.NoError(t, c.Connect())

	require.NoError(t, c.Publish("notif", ListenerRoutingKey(), []byte(`{"id":"1"}`)))

	require.Len(t, ch.PublishedMessages, 1)
	msg := ch.PublishedMessages[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "notif", ch.PublishedExchange[0])
}

func TestPublishFailureIsNonFatalError(t *testing.T) {
	dialer, ch := NewMockAMQPDialer()
	c := NewClientWithDialer(testConfig(), dialer)
	require.NoError(t, c.Connect())
	ch.PublishErr = errors.New("no route")

	err := c.Publish("notif", ListenerRoutingKey(), []byte(`{}`))
	assert.Error(t, err)
}

func TestConsumeDeliversAndAcks(t *testing.T) {
	dialer, ch := NewMockAMQPDialer()
	c := NewClientWithDialer(testConfig(), dialer)
	require.NoError(t, c.Connect())

	ch.DeliveryChan = make(chan amqp.Delivery, 1)
	ch.DeliveryChan <- amqp.Delivery{Body: []byte(`{"wx_result":{"id":"1","status":0}}`)}

	received := make(chan []byte, 1)
	go func() {
		_ = c.Consume("wx.listener", func(d Delivery) {
			received <- d.Body
			d.Ack()
			c.StopConsuming()
		})
	}()

	select {
	case body := <-received:
		assert.Contains(t, string(body), "wx_result")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestCloseHandlesNilGracefully(t *testing.T) {
	c := NewClientWithDialer(testConfig(), &MockAMQPDialer{})
	assert.NoError(t, c.Close())
}

func TestCloseClosesChannelAndConnection(t *testing.T) {
	dialer, _ := NewMockAMQPDialer()
	c := NewClientWithDialer(testConfig(), dialer)
	require.NoError(t, c.Connect())

	assert.NoError(t, c.Close())
}
