package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
)

var ErrQueueClosed = errors.New("queue closed")

type NSQOptions struct {
	Topic       string
	Channel     string
	Lookupd     string
	NSQD        string
	Concurrency int
	PopTimeout  time.Duration
}

// defaultTouchInterval is half of nsqd's default message timeout.
const defaultTouchInterval = 30 * time.Second

// NSQQueue adapts an NSQ consumer to the pull-style Dequeue used by the job
// loops. A message is finished as soon as a loop takes it; it is never
// requeued after that.
type NSQQueue struct {
	consumer      *nsq.Consumer
	messages      chan []byte
	timeout       time.Duration
	touchInterval time.Duration

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewNSQQueue(opts NSQOptions) (*NSQQueue, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	cfg := nsq.NewConfig()
	cfg.MaxInFlight = opts.Concurrency

	consumer, err := nsq.NewConsumer(opts.Topic, opts.Channel, cfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}

	q := newNSQQueue(opts.PopTimeout)
	q.consumer = consumer
	if cfg.MsgTimeout > 0 {
		q.touchInterval = cfg.MsgTimeout / 2
	}
	consumer.AddConcurrentHandlers(q, opts.Concurrency)

	if opts.Lookupd != "" {
		err = consumer.ConnectToNSQLookupd(opts.Lookupd)
	} else {
		err = consumer.ConnectToNSQD(opts.NSQD)
	}
	if err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("nsq connect error: %w", err)
	}
	slog.Info("NSQ job consumer connected", "topic", opts.Topic, "channel", opts.Channel)
	return q, nil
}

func newNSQQueue(timeout time.Duration) *NSQQueue {
	return &NSQQueue{
		messages:      make(chan []byte),
		timeout:       timeout,
		touchInterval: defaultTouchInterval,
		stopped:       make(chan struct{}),
	}
}

// HandleMessage blocks until a loop is ready for the message, touching it
// so nsqd does not time it out while every loop is busy. Returning nil
// finishes it; a queue that is shutting down returns an error so nsqd
// requeues a message nobody took.
func (q *NSQQueue) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}
	body := append([]byte(nil), m.Body...)

	ticker := time.NewTicker(q.touchInterval)
	defer ticker.Stop()

	for {
		select {
		case q.messages <- body:
			return nil
		case <-ticker.C:
			m.Touch()
		case <-q.stopped:
			return ErrQueueClosed
		}
	}
}

func (q *NSQQueue) Dequeue(ctx context.Context) ([]byte, error) {
	var timeout <-chan time.Time
	if q.timeout > 0 {
		timer := time.NewTimer(q.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case body := <-q.messages:
		return body, nil
	case <-timeout:
		return nil, nil
	case <-q.stopped:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *NSQQueue) Close() error {
	q.stopOnce.Do(func() {
		close(q.stopped)
		if q.consumer != nil {
			q.consumer.Stop()
			<-q.consumer.StopChan
		}
	})
	return nil
}

// EnsureTopic creates topic through the nsqd HTTP API so that consumers
// resolving it via lookupd do not fail before the first publish.
func EnsureTopic(ctx context.Context, nsqdHTTP, topic string) error {
	endpoint := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req) // #nosec G107 -- URL is built from internal NSQ config, not user input
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("create topic %s: unexpected status %d", topic, resp.StatusCode)
	}
	return nil
}
