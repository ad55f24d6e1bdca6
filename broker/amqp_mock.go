package broker

import (
	"fmt"

	"github.com/streadway/amqp"
)

// MockAMQPConnection is a test double for AMQPConnection.
type MockAMQPConnection struct {
	MockChannel   AMQPChannel
	ChannelErr    error
	CloseErr      error
	ChannelCalled bool
	CloseCalled   bool
}

func (m *MockAMQPConnection) Channel() (AMQPChannel, error) {
	m.ChannelCalled = true
	if m.ChannelErr != nil {
		return nil, m.ChannelErr
	}
	return m.MockChannel, nil
}

func (m *MockAMQPConnection) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// MockAMQPChannel is a test double for AMQPChannel, recording every
// call it receives for assertions.
type MockAMQPChannel struct {
	PublishedMessages []amqp.Publishing
	PublishedKeys     []string
	PublishedExchange []string
	DeclaredExchanges []string
	DeclaredQueues    []string
	BoundQueues       []string

	ExchangeDeclareErr error
	QueueDeclareErr    error
	QueueBindErr       error
	PublishErr         error
	ConsumeErr         error
	CloseErr           error

	ConsumeCalled bool
	DeliveryChan  chan amqp.Delivery
}

func (m *MockAMQPChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	m.DeclaredExchanges = append(m.DeclaredExchanges, name)
	return m.ExchangeDeclareErr
}

func (m *MockAMQPChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.DeclaredQueues = append(m.DeclaredQueues, name)
	if m.QueueDeclareErr != nil {
		return amqp.Queue{}, m.QueueDeclareErr
	}
	return amqp.Queue{Name: name}, nil
}

func (m *MockAMQPChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	m.BoundQueues = append(m.BoundQueues, name)
	return m.QueueBindErr
}

func (m *MockAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.PublishedMessages = append(m.PublishedMessages, msg)
	m.PublishedKeys = append(m.PublishedKeys, key)
	m.PublishedExchange = append(m.PublishedExchange, exchange)
	return nil
}

func (m *MockAMQPChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	m.ConsumeCalled = true
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}
	if m.DeliveryChan == nil {
		m.DeliveryChan = make(chan amqp.Delivery)
	}
	return m.DeliveryChan, nil
}

func (m *MockAMQPChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return nil
}

func (m *MockAMQPChannel) Close() error {
	return m.CloseErr
}

// MockAMQPDialer is a test double for AMQPDialer.
type MockAMQPDialer struct {
	MockConnection AMQPConnection
	DialErr        error
	DialCalled     bool
	LastURL        string
}

func (m *MockAMQPDialer) Dial(url string) (AMQPConnection, error) {
	m.DialCalled = true
	m.LastURL = url
	if m.DialErr != nil {
		return nil, m.DialErr
	}
	return m.MockConnection, nil
}

// NewMockAMQPDialer returns a dialer wired to a fresh mock connection
// and channel, ready for a successful Connect().
func NewMockAMQPDialer() (*MockAMQPDialer, *MockAMQPChannel) {
	mockChannel := &MockAMQPChannel{}
	mockConn := &MockAMQPConnection{MockChannel: mockChannel}
	return &MockAMQPDialer{MockConnection: mockConn}, mockChannel
}

// NewMockAMQPDialerWithError returns a dialer whose Dial always fails.
func NewMockAMQPDialerWithError(err error) *MockAMQPDialer {
	return &MockAMQPDialer{DialErr: err}
}

// NewMockAMQPDialerWithChannelError returns a dialer whose Channel() call fails.
func NewMockAMQPDialerWithChannelError() *MockAMQPDialer {
	mockConn := &MockAMQPConnection{ChannelErr: fmt.Errorf("failed to open channel")}
	return &MockAMQPDialer{MockConnection: mockConn}
}
