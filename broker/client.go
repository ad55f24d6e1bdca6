package broker

import (
	"fmt"

	"github.com/streadway/amqp"
	"github.com/SUSE-Enceladus/mqsf/mqerr"
)

const (
	routingKeyListener = "listener_msg"
	exchangeKind       = "direct"
)

// Config carries the connection parameters a Client dials with.
type Config struct {
	Host      string
	User      string
	Pass      string
	Port      int
	VHost     string
	Heartbeat int
}

func (c Config) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s?heartbeat=%d", c.User, c.Pass, c.Host, c.Port, c.VHost, c.Heartbeat)
}

// Delivery is the framework-facing view of a received message: the raw
// body and the ack it owes the broker once handling completes.
type Delivery struct {
	Body []byte
	ack  func() error
}

// Ack acknowledges the delivery. The engine calls this exactly once per
// delivery, whether or not handling succeeded (spec §4.1/§7).
func (d Delivery) Ack() error {
	return d.ack()
}

// Client is the stage's AMQP client: direct durable exchanges, durable
// queues, persistent+mandatory publishing, and manual-ack consumption.
// Grounded on the RabbitMQService/Connect pattern, generalized from a
// single fixed queue to the declare/bind/publish/consume contract spec
// §4.1 requires, and from the original's service.py for exact wire
// semantics (direct+durable exchanges, "<exchange>.<name>" queue
// naming, persistent+mandatory publish).
type Client struct {
	cfg    Config
	dialer AMQPDialer

	conn AMQPConnection
	ch   AMQPChannel

	deliveries <-chan amqp.Delivery
	stopCh     chan struct{}
}

// NewClient returns a Client that will dial with the real AMQP library.
func NewClient(cfg Config) *Client {
	return NewClientWithDialer(cfg, &RealAMQPDialer{})
}

// NewClientWithDialer injects a dialer, for tests.
func NewClientWithDialer(cfg Config, dialer AMQPDialer) *Client {
	return &Client{cfg: cfg, dialer: dialer}
}

// Connect dials the broker and opens a channel. A connection failure
// here is fatal at startup (spec §4.1/§7).
func (c *Client) Connect() error {
	conn, err := c.dialer.Dial(c.cfg.url())
	if err != nil {
		return mqerr.Connect(err, "dialing %s:%d", c.cfg.Host, c.cfg.Port)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return mqerr.Connect(err, "opening channel")
	}

	c.conn = conn
	c.ch = ch
	return nil
}

// ensureChannel connects if no channel has been opened yet. A channel
// or connection that is closed afterwards, by Close or by the broker,
// is not detected and is not reopened.
func (c *Client) ensureChannel() error {
	if c.ch != nil {
		return nil
	}
	return c.Connect()
}

// QueueName canonicalizes a queue name as "<exchange>.<logical-name>"
// to prevent collisions between stages sharing a broker.
func QueueName(exchange, logicalName string) string {
	return exchange + "." + logicalName
}

// DeclareExchange declares a direct, durable exchange.
func (c *Client) DeclareExchange(name string) error {
	if err := c.ensureChannel(); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(name, exchangeKind, true, false, false, false, nil); err != nil {
		return mqerr.Connect(err, "declaring exchange %s", name)
	}
	return nil
}

// DeclareQueue declares a durable queue.
func (c *Client) DeclareQueue(name string) error {
	if err := c.ensureChannel(); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return mqerr.Connect(err, "declaring queue %s", name)
	}
	return nil
}

// Bind binds queue to exchange with the given routing key.
func (c *Client) Bind(exchange, queue, routingKey string) error {
	if err := c.ensureChannel(); err != nil {
		return err
	}
	if err := c.ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return mqerr.Connect(err, "binding queue %s to exchange %s", queue, exchange)
	}
	return nil
}

// ListenerRoutingKey is the fixed routing key every stage binds its
// input queue with and publishes its result under (spec §6).
func ListenerRoutingKey() string { return routingKeyListener }

// Publish publishes body to exchange with routingKey, persistent
// delivery mode, mandatory flag set, content-type application/json.
// Publish failure is non-fatal (spec §4.1/§7) — the caller logs it.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if err := c.ensureChannel(); err != nil {
		return err
	}
	err := c.ch.Publish(exchange, routingKey, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return mqerr.Connect(err, "publishing to exchange %s", exchange)
	}
	return nil
}

// Consume starts consuming from queue with manual acknowledgement and
// invokes handler for every delivery; Consume itself does not ack, the
// handler does so through Delivery.Ack. It blocks until StopConsuming is
// called or the underlying delivery channel closes.
func (c *Client) Consume(queue string, handler func(Delivery)) error {
	if err := c.ensureChannel(); err != nil {
		return err
	}
	if err := c.ch.Qos(1, 0, false); err != nil {
		return mqerr.Connect(err, "setting QoS")
	}

	deliveries, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return mqerr.Connect(err, "consuming queue %s", queue)
	}

	stop := make(chan struct{})
	c.stopCh = stop
	for {
		select {
		case <-stop:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			delivery := d
			handler(Delivery{
				Body: delivery.Body,
				ack:  func() error { return delivery.Ack(false) },
			})
		}
	}
}

// StopConsuming causes a running Consume call to return.
func (c *Client) StopConsuming() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
