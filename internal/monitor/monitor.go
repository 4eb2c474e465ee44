package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/hla"
	"github.com/roach88/hlaservices/internal/observation"
)

// ErrStopped is returned by Sync once the monitor has been stopped.
var ErrStopped = errors.New("monitor stopped")

// Config configures a Monitor.
type Config struct {
	// SUTName is the federate name the system under test joins with.
	SUTName string

	// Catalogue is the closed set of expected services.
	Catalogue *catalogue.Catalogue

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Recorder receives the run trace. Optional.
	Recorder Recorder

	// QueueCapacity pre-sizes the event queue. Optional.
	QueueCapacity int
}

// Monitor is the engine context for one test run: it owns the observation
// table, the tracked SUT identity and the lifecycle state.
//
// Thread-safety model:
//   - Ambassador(): the returned callbacks may be driven from any goroutine
//   - Run(): must be called from exactly one goroutine, after Init
//   - Sync(), Stop(), Result(), Identity(): safe from any goroutine
//
// All event handling, observation marks and RTI calls made in response to
// events happen on the Run goroutine.
type Monitor struct {
	rti        hla.RTIAmbassador
	sutName    string
	logger     *slog.Logger
	recorder   Recorder
	state      *observation.State
	lifecycle  *lifecycle
	queue      *eventQueue
	clock      *Clock
	dispatcher *dispatcher

	handles     FederationHandles
	initialized bool

	// current is the seq of the event being handled. Run goroutine only.
	current int64

	mu       sync.RWMutex
	identity *FederateIdentity
	armed    bool
	events   int64
}

// New creates a Monitor bound to rti. The caller connects rti with
// Ambassador() as the callback target before calling Init.
func New(rti hla.RTIAmbassador, cfg Config) (*Monitor, error) {
	if rti == nil {
		return nil, &Error{Kind: KindSetup, Op: "new", Message: "RTI ambassador is required"}
	}
	if cfg.SUTName == "" {
		return nil, &Error{Kind: KindSetup, Op: "new", Message: "SUT name is required"}
	}
	if cfg.Catalogue == nil || cfg.Catalogue.Len() == 0 {
		return nil, &Error{Kind: KindSetup, Op: "new", Message: "expected-service catalogue is empty", Err: catalogue.ErrEmpty}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	m := &Monitor{
		rti:      rti,
		sutName:  cfg.SUTName,
		logger:   logger,
		recorder: recorder,
		state:    observation.NewState(cfg.Catalogue),
		queue:    newEventQueue(cfg.QueueCapacity),
		clock:    NewClock(),
	}
	m.dispatcher = &dispatcher{queue: m.queue, clock: m.clock, logger: logger}
	m.lifecycle = newLifecycle(func(service string, source observation.Source) {
		m.mark(service, source, m.current)
	})
	return m, nil
}

// Ambassador returns the callback target to pass to the RTI's Connect.
func (m *Monitor) Ambassador() hla.FederateAmbassador {
	return m.dispatcher
}

// Init resolves the MOM handles and subscribes to federate and federation
// attributes. Any failure is a setup error and the run must be abandoned.
// Init is not idempotent; a second call fails.
func (m *Monitor) Init() error {
	if m.initialized {
		return &Error{Kind: KindSetup, Op: "init", Message: "already initialized"}
	}

	handles, err := ResolveHandles(m.rti)
	if err != nil {
		m.logger.Error("failed to resolve federation handles", "error", err)
		return err
	}
	m.handles = handles

	if err := subscribeIdentity(m.rti, handles); err != nil {
		m.logger.Error("failed to subscribe", "error", err)
		return err
	}
	m.initialized = true
	return nil
}

// Handles returns the handles resolved by Init.
func (m *Monitor) Handles() FederationHandles {
	return m.handles
}

// Run starts the single-writer event loop.
// Blocks until the context is cancelled or Stop() is called. After Stop,
// events already queued are handled before Run returns nil.
//
// Event handling errors are logged and the event is dropped; processing
// continues with the next event.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.initialized {
		return &Error{Kind: KindSetup, Op: "run", Message: "monitor not initialized"}
	}
	m.logger.Debug("monitor starting", "sut", m.sutName)

	for {
		event, ok := m.queue.TryDequeue()
		if ok {
			m.process(ctx, event)
			continue
		}

		select {
		case <-ctx.Done():
			m.logger.Debug("monitor stopping: context cancelled")
			m.queue.Close()
			return ctx.Err()

		case <-m.queue.Wait():
			// The signal channel is closed with the queue.
			if m.queue.Closed() && m.queue.Len() == 0 {
				m.logger.Debug("monitor stopping: queue drained")
				return nil
			}
		}
	}
}

// Stop closes the event queue. Run drains what was queued and returns.
func (m *Monitor) Stop() {
	m.queue.Close()
}

// Sync blocks until every event enqueued before the call has been handled.
func (m *Monitor) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !m.queue.Enqueue(Event{Type: eventBarrier, done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueLen returns the number of events waiting.
func (m *Monitor) QueueLen() int {
	return m.queue.Len()
}

// process routes an event to its handler.
// Called only from the Run goroutine.
func (m *Monitor) process(ctx context.Context, ev Event) {
	if ev.Type == eventBarrier {
		close(ev.done)
		return
	}

	m.current = ev.Seq
	outcome, err := m.handle(ctx, ev)

	m.mu.Lock()
	m.events++
	m.mu.Unlock()

	rec := EventRecord{Seq: ev.Seq, Kind: ev.Type.String(), Outcome: outcome}
	if err != nil {
		rec.Detail = err.Error()
		m.logger.Error("event processing failed",
			"error", err,
			"kind", ev.Type.String(),
			"seq", ev.Seq,
		)
	}
	m.recorder.RecordEvent(rec)
}

func (m *Monitor) handle(ctx context.Context, ev Event) (string, error) {
	switch ev.Type {
	case EventAttributesUpdated:
		if ev.Attributes == nil {
			return OutcomeProtocolError, protocolError("attributes", fmt.Errorf("event missing payload"))
		}
		return m.handleAttributes(ctx, ev.Attributes)

	case EventInteractionReceived:
		if ev.Interaction == nil {
			return OutcomeProtocolError, protocolError("interaction", fmt.Errorf("event missing payload"))
		}
		return m.handleInteraction(ev.Interaction, ev.Seq)

	case EventObjectRemoved:
		if ev.Removal == nil {
			return OutcomeProtocolError, protocolError("removal", fmt.Errorf("event missing payload"))
		}
		return m.handleRemoval(ctx, ev.Removal)

	default:
		return OutcomeProtocolError, protocolError("dispatch", fmt.Errorf("unknown event type: %d", ev.Type))
	}
}

// mark updates the observation table and records applied transitions.
func (m *Monitor) mark(service string, source observation.Source, seq int64) observation.MarkResult {
	result := m.state.Mark(service, source)
	if result == observation.Applied {
		m.recorder.RecordObservation(ObservationRecord{Seq: seq, Service: catalogue.Normalize(service), Source: source})
	}
	return result
}

// Identity returns a copy of the tracked SUT, or nil before resolution.
func (m *Monitor) Identity() *FederateIdentity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return nil
	}
	id := *m.identity
	id.Handle = id.Handle.Clone()
	return &id
}

// Result is the monitor's final state.
type Result struct {
	Identity     *FederateIdentity
	Armed        bool
	Lifecycle    string
	Events       int64
	Observations []observation.Entry
	Verdict      observation.Verdict
}

// Result snapshots the observation table and verdict. Call it after Run has
// returned to be sure every delivered callback is reflected.
func (m *Monitor) Result() Result {
	snapshot := m.state.Snapshot()

	m.mu.RLock()
	armed, events := m.armed, m.events
	m.mu.RUnlock()

	return Result{
		Identity:     m.Identity(),
		Armed:        armed,
		Lifecycle:    m.lifecycle.Current(),
		Events:       events,
		Observations: snapshot,
		Verdict:      observation.Partition(snapshot),
	}
}
