/*
events.go - Outbound notifications from the engine

PURPOSE:
  The engine reports observable side effects (debt created, payment received)
  to a Notifier. Delivery happens AFTER the owning transaction commits: a
  rolled-back payment never produces an event, and a crashed notifier never
  rolls back a payment.

  The Notifier is explicit message passing, not an event bus: the engine
  holds exactly one Notifier and calls it synchronously. Asynchrony, fan-out
  and email rendering live behind the interface (see the notify package).

SEE ALSO:
  - engine.go: Emission points
  - notify/notify.go: Channel-backed implementation
*/
package ledger

// DebtCreatedEvent is emitted once per new Debt row, whether from an order
// or a manual increase.
type DebtCreatedEvent struct {
	DebtID     DebtID
	CustomerID CustomerID
	OrderID    OrderID // NoOrder for manual increases
	Amount     Money
}

// PaymentReceivedEvent is emitted once per recorded Payment, including the
// synthetic adjustment payments produced by a decrease.
type PaymentReceivedEvent struct {
	PaymentID  PaymentID
	DebtID     DebtID
	CustomerID CustomerID
	Amount     Money
	Type       PaymentType
}

// Notifier consumes engine events. Implementations must not block for long;
// the engine calls these on the request path after commit.
type Notifier interface {
	DebtCreated(e DebtCreatedEvent)
	PaymentReceived(e PaymentReceivedEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) DebtCreated(DebtCreatedEvent)         {}
func (NopNotifier) PaymentReceived(PaymentReceivedEvent) {}
