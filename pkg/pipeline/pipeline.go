// Package pipeline is the ordered, bounded event channel between the
// matching engines (producers) and the consumers that journal or forward
// their events.
//
// Published payloads are copied into a fixed ring of slots. Every consumer
// reads the ring at its own pace in strict sequence order; the producer
// blocks while the slowest consumer is a full ring behind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joripage/coinexchange/pkg/logging"
	"go.uber.org/zap"
)

var (
	ErrNotInitialized     = errors.New("pipeline not initialized")
	ErrAlreadyShutdown    = errors.New("pipeline already shut down")
	ErrAlreadyInitialized = errors.New("pipeline already initialized")
	ErrDuplicateConsumer  = errors.New("duplicate consumer name")
)

const DefaultBufferSize = 1024

// Handler processes one committed event. payload is owned by the pipeline
// and only valid for the duration of the call. endOfBatch is true for the
// last event currently available to this consumer.
type Handler interface {
	OnEvent(seq uint64, payload []byte, endOfBatch bool) error
}

type HandlerFunc func(seq uint64, payload []byte, endOfBatch bool) error

func (f HandlerFunc) OnEvent(seq uint64, payload []byte, endOfBatch bool) error {
	return f(seq, payload, endOfBatch)
}

type Consumer struct {
	Name    string
	Handler Handler
}

type Config struct {
	BufferSize int // power of two, DefaultBufferSize when zero
}

type state int

const (
	stateCreated state = iota
	stateRunning
	stateDraining
	stateShutdown
)

type slot struct {
	buf []byte
}

type consumer struct {
	name      string
	handler   Handler
	processed uint64 // last handled sequence
	failures  uint64
}

type Pipeline struct {
	logger *logging.Logger

	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	state    state

	slots  []slot
	mask   uint64
	cursor uint64 // last committed sequence; sequences start at 1

	consumers []*consumer
	wg        sync.WaitGroup
}

func New(cfg Config, logger *logging.Logger) (*Pipeline, error) {
	size := cfg.BufferSize
	if size == 0 {
		size = DefaultBufferSize
	}
	if size < 1 || size&(size-1) != 0 {
		return nil, fmt.Errorf("pipeline: buffer size %d is not a power of two", size)
	}

	p := &Pipeline{
		logger: logging.OrNop(logger).Named("pipeline"),
		mask:   uint64(size - 1),
		slots:  make([]slot, size),
	}
	p.notFull = sync.NewCond(&p.mu)
	p.notEmpty = sync.NewCond(&p.mu)
	return p, nil
}

// RegisterConsumer adds a consumer before Initialize.
func (p *Pipeline) RegisterConsumer(name string, h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registerLocked(name, h)
}

func (p *Pipeline) registerLocked(name string, h Handler) error {
	switch p.state {
	case stateRunning:
		return ErrAlreadyInitialized
	case stateDraining, stateShutdown:
		return ErrAlreadyShutdown
	}
	if p.hasConsumerLocked(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateConsumer, name)
	}
	p.consumers = append(p.consumers, &consumer{name: name, handler: h})
	return nil
}

func (p *Pipeline) hasConsumerLocked(name string) bool {
	for _, c := range p.consumers {
		if c.name == name {
			return true
		}
	}
	return false
}

// Initialize registers any extra consumers and starts one goroutine per
// consumer. Publish fails until Initialize has run. If any name is taken,
// nothing is registered.
func (p *Pipeline) Initialize(consumers ...Consumer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateRunning:
		return ErrAlreadyInitialized
	case stateDraining, stateShutdown:
		return ErrAlreadyShutdown
	}
	seen := make(map[string]struct{}, len(consumers))
	for _, c := range consumers {
		if _, dup := seen[c.Name]; dup || p.hasConsumerLocked(c.Name) {
			return fmt.Errorf("%w: %s", ErrDuplicateConsumer, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for _, c := range consumers {
		p.consumers = append(p.consumers, &consumer{name: c.Name, handler: c.Handler})
	}
	p.state = stateRunning

	for _, c := range p.consumers {
		p.wg.Add(1)
		go p.run(c)
	}
	p.logger.Info(context.Background(), "pipeline started",
		zap.Int("buffer_size", len(p.slots)), zap.Int("consumers", len(p.consumers)))
	return nil
}

// Publish copies payload into the next slot and commits it. It blocks while
// the ring is full and returns the committed sequence.
func (p *Pipeline) Publish(payload []byte) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if err := p.publishableLocked(); err != nil {
			return 0, err
		}
		if p.cursor-p.slowestLocked() < uint64(len(p.slots)) {
			break
		}
		p.notFull.Wait()
	}

	seq := p.cursor + 1
	s := &p.slots[(seq-1)&p.mask]
	s.buf = append(s.buf[:0], payload...)
	p.cursor = seq

	p.notEmpty.Broadcast()
	return seq, nil
}

func (p *Pipeline) publishableLocked() error {
	switch p.state {
	case stateCreated:
		return ErrNotInitialized
	case stateDraining, stateShutdown:
		return ErrAlreadyShutdown
	}
	return nil
}

func (p *Pipeline) slowestLocked() uint64 {
	slowest := p.cursor
	for _, c := range p.consumers {
		if c.processed < slowest {
			slowest = c.processed
		}
	}
	return slowest
}

// run delivers committed slots to c until the pipeline drains.
func (p *Pipeline) run(c *consumer) {
	defer p.wg.Done()
	log := p.logger.With(zap.String("consumer", c.name))

	for {
		p.mu.Lock()
		for c.processed == p.cursor && p.state == stateRunning {
			p.notEmpty.Wait()
		}
		if c.processed == p.cursor {
			p.mu.Unlock()
			return
		}
		from, to := c.processed+1, p.cursor
		p.mu.Unlock()

		// slots in [from, to] cannot be reused before processed moves past them
		var failed uint64
		for seq := from; seq <= to; seq++ {
			payload := p.slots[(seq-1)&p.mask].buf
			if err := deliver(c.handler, seq, payload, seq == to); err != nil {
				failed++
				log.Error(context.Background(), "consumer failed", zap.Uint64("seq", seq), zap.Error(err))
			}
		}

		p.mu.Lock()
		c.processed = to
		c.failures += failed
		p.notFull.Broadcast()
		p.mu.Unlock()
	}
}

func deliver(h Handler, seq uint64, payload []byte, endOfBatch bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.OnEvent(seq, payload, endOfBatch)
}

// Shutdown stops accepting publishes, waits for every consumer to handle
// all committed events, then releases the ring.
func (p *Pipeline) Shutdown() error {
	p.mu.Lock()
	switch p.state {
	case stateCreated:
		p.mu.Unlock()
		return ErrNotInitialized
	case stateDraining, stateShutdown:
		p.mu.Unlock()
		return ErrAlreadyShutdown
	}
	p.state = stateDraining
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
	cursor := p.cursor
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.state = stateShutdown
	p.slots = nil
	p.mu.Unlock()

	p.logger.Info(context.Background(), "pipeline drained", zap.Uint64("cursor", cursor))
	return nil
}

// Cursor returns the last committed sequence.
func (p *Pipeline) Cursor() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// ConsumerSequence returns the last sequence the named consumer handled.
func (p *Pipeline) ConsumerSequence(name string) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.consumers {
		if c.name == name {
			return c.processed, true
		}
	}
	return 0, false
}

// Failures returns how many events the named consumer failed to handle.
func (p *Pipeline) Failures(name string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.consumers {
		if c.name == name {
			return c.failures
		}
	}
	return 0
}
