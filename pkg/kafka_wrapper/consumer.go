package kafkawrapper

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	WorkerCount int
	MaxRetries  int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	// batch options
	BatchSize    int           // max messages per batch
	BatchTimeout time.Duration // max wait before a partial batch is handed out
}

// ConsumerGroup fetches from one topic and hands batches to a pool of
// workers. A batch is committed once the handler succeeds, or once it has
// exhausted its retries and been copied to the DLQ topic.
type ConsumerGroup struct {
	r          *kafka.Reader
	cfg        ConsumerConfig
	prodForDLQ *Producer
}

func NewConsumerGroup(cfg ConsumerConfig) (*ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka consumer: brokers, topic and group id are required")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}

	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})

	var prod *Producer
	if cfg.DLQTopic != "" {
		prod = NewProducer(ProducerConfig{Brokers: cfg.Brokers})
	}

	return &ConsumerGroup{r: rd, cfg: cfg, prodForDLQ: prod}, nil
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil {
		return nil
	}
	if cg.prodForDLQ != nil {
		_ = cg.prodForDLQ.Close()
	}
	if cg.r != nil {
		return cg.r.Close()
	}
	return nil
}

// Run (batch mode): handler receives []Message at a time. It returns when
// ctx is done or every worker has exited.
func (cg *ConsumerGroup) Run(ctx context.Context, handler func(context.Context, []Message) error) error {
	if cg == nil || cg.r == nil {
		return ErrNotInitialized
	}

	batches := make(chan []kafka.Message, cg.cfg.WorkerCount)
	go cg.fetch(ctx, batches)

	done := make(chan struct{}, cg.cfg.WorkerCount)
	for i := 0; i < cg.cfg.WorkerCount; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for ms := range batches {
				if !cg.process(ctx, ms, handler) {
					return
				}
			}
		}()
	}

	for exited := 0; exited < cg.cfg.WorkerCount; {
		select {
		case <-done:
			exited++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// fetch builds batches of at most BatchSize messages, flushing partial
// batches every BatchTimeout.
func (cg *ConsumerGroup) fetch(ctx context.Context, batches chan<- []kafka.Message) {
	defer close(batches)

	msgs := make(chan kafka.Message)
	go func() {
		defer close(msgs)
		for {
			m, err := cg.r.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
					return
				}
				zap.S().Warnf("kafka fetch %s: %v", cg.cfg.Topic, err)
				time.Sleep(200 * time.Millisecond)
				continue
			}
			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(cg.cfg.BatchTimeout)
	defer ticker.Stop()

	var buf []kafka.Message
	flush := func() bool {
		if len(buf) == 0 {
			return true
		}
		select {
		case batches <- buf:
			buf = nil
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				flush()
				return
			}
			buf = append(buf, m)
			if len(buf) >= cg.cfg.BatchSize && !flush() {
				return
			}
		case <-ticker.C:
			if !flush() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// process runs handler with retries; false means ctx ended mid-retry.
func (cg *ConsumerGroup) process(ctx context.Context, ms []kafka.Message, handler func(context.Context, []Message) error) bool {
	wrapped := make([]Message, len(ms))
	for i, m := range ms {
		wrapped[i] = wrapMessage(m)
	}

	for attempt := 1; ; attempt++ {
		err := handler(ctx, wrapped)
		if err == nil {
			break
		}
		if attempt > cg.cfg.MaxRetries {
			zap.S().Errorf("kafka batch of %d on %s failed after %d attempts: %v", len(ms), cg.cfg.Topic, attempt, err)
			cg.deadLetter(ctx, ms)
			break
		}
		select {
		case <-time.After(backoffDuration(cg.cfg.BackoffMin, cg.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return false
		}
	}

	if err := cg.r.CommitMessages(ctx, ms...); err != nil {
		zap.S().Warnf("kafka commit %s: %v", cg.cfg.Topic, err)
	}
	return true
}

func (cg *ConsumerGroup) deadLetter(ctx context.Context, ms []kafka.Message) {
	if cg.prodForDLQ == nil {
		return
	}
	for _, m := range ms {
		if err := cg.prodForDLQ.Publish(ctx, cg.cfg.DLQTopic, m.Key, m.Value, headersToMap(m.Headers)); err != nil {
			zap.S().Errorf("kafka dlq %s: %v", cg.cfg.DLQTopic, err)
		}
	}
}

func wrapMessage(m kafka.Message) Message {
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   headersToMap(m.Headers),
	}
}

func backoffDuration(min, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	pow := math.Pow(2, float64(attempt-1))
	d := time.Duration(float64(min) * pow)
	if d > max {
		d = max
	}
	if d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}
