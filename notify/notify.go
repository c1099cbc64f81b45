/*
Package notify delivers ledger events to interested parties.

PURPOSE:
  Decouples the ledger engine from side effects (emails, webhooks, admin
  alerts). The engine emits events after a transaction commits; this package
  fans them out asynchronously so a slow or failing notification channel can
  never block or roll back an accounting operation.

DESIGN:
  - Dispatcher implements ledger.Notifier with a buffered channel and a
    single worker goroutine
  - Senders are pluggable (LogSender for development, Recorder for tests)
  - Events are dropped with a log line if the buffer is full; notifications
    are best-effort by contract

USAGE:
  dispatcher := notify.NewDispatcher(notify.NewLogSender(nil), nil)
  dispatcher.Start()
  defer dispatcher.Stop()

  engine := ledger.NewEngine(store, dispatcher, nil)

SEE ALSO:
  - ledger/events.go: Event definitions and the Notifier interface
*/
package notify

import (
	"log"
	"sync"

	"github.com/warp/debt-ledger/ledger"
)

// Sender receives events from the dispatcher, one at a time.
type Sender interface {
	SendDebtCreated(e ledger.DebtCreatedEvent)
	SendPaymentReceived(e ledger.PaymentReceivedEvent)
}

const defaultBufferSize = 64

// Dispatcher fans out ledger events to a Sender on a worker goroutine.
type Dispatcher struct {
	sender Sender
	logger *log.Logger

	events chan any
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
	active bool
}

// NewDispatcher creates a dispatcher for the given sender.
// A nil logger falls back to the standard logger.
func NewDispatcher(sender Sender, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		sender: sender,
		logger: logger,
		events: make(chan any, defaultBufferSize),
		stop:   make(chan bool),
	}
}

// Start begins the worker goroutine.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return
	}
	d.active = true
	d.wg.Add(1)
	go d.run()
}

// Stop drains pending events and stops the worker.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return
	}
	d.active = false
	close(d.stop)
	d.wg.Wait()
}

// DebtCreated implements ledger.Notifier.
func (d *Dispatcher) DebtCreated(e ledger.DebtCreatedEvent) {
	d.enqueue(e)
}

// PaymentReceived implements ledger.Notifier.
func (d *Dispatcher) PaymentReceived(e ledger.PaymentReceivedEvent) {
	d.enqueue(e)
}

func (d *Dispatcher) enqueue(e any) {
	select {
	case d.events <- e:
	default:
		d.logger.Printf("[Notify] Buffer full, dropping event %T", e)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case e := <-d.events:
			d.deliver(e)
		case <-d.stop:
			// Drain whatever is already queued before exiting
			for {
				select {
				case e := <-d.events:
					d.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(e any) {
	switch ev := e.(type) {
	case ledger.DebtCreatedEvent:
		d.sender.SendDebtCreated(ev)
	case ledger.PaymentReceivedEvent:
		d.sender.SendPaymentReceived(ev)
	default:
		d.logger.Printf("[Notify] Unknown event type %T", e)
	}
}

// LogSender writes events to a logger. Stand-in for email/webhook senders.
type LogSender struct {
	logger *log.Logger
}

// NewLogSender creates a sender that logs each event.
// A nil logger falls back to the standard logger.
func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendDebtCreated(e ledger.DebtCreatedEvent) {
	s.logger.Printf("[Notify] Debt %d created for customer %d (order %d): %s",
		e.DebtID, e.CustomerID, e.OrderID, e.Amount)
}

func (s *LogSender) SendPaymentReceived(e ledger.PaymentReceivedEvent) {
	s.logger.Printf("[Notify] Payment %d of %s (%s) recorded on debt %d for customer %d",
		e.PaymentID, e.Amount, e.Type, e.DebtID, e.CustomerID)
}

// Recorder captures events for assertions in tests.
type Recorder struct {
	mu       sync.Mutex
	created  []ledger.DebtCreatedEvent
	payments []ledger.PaymentReceivedEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SendDebtCreated(e ledger.DebtCreatedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, e)
}

func (r *Recorder) SendPaymentReceived(e ledger.PaymentReceivedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, e)
}

// DebtsCreated returns a copy of the captured debt events.
func (r *Recorder) DebtsCreated() []ledger.DebtCreatedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.DebtCreatedEvent, len(r.created))
	copy(out, r.created)
	return out
}

// PaymentsReceived returns a copy of the captured payment events.
func (r *Recorder) PaymentsReceived() []ledger.PaymentReceivedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.PaymentReceivedEvent, len(r.payments))
	copy(out, r.payments)
	return out
}
