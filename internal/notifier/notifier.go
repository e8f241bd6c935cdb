// Package notifier is the messaging boundary. Delivery is best effort, the
// scan cycle never waits on it and never depends on its success.
package notifier

// Category buckets messages so sinks can route or color them.
type Category string

const (
	// CategoryTrade marks order executions.
	CategoryTrade Category = "trade"
	// CategoryCycle marks scan cycle summaries.
	CategoryCycle Category = "cycle"
	// CategoryAlert marks recoverable failures worth a human look.
	CategoryAlert Category = "alert"
	// CategoryFatal marks escalations after repeated failures.
	CategoryFatal Category = "fatal"
)

// Notifier delivers a message to an external sink. Implementations must not
// block the caller beyond queue admission.
type Notifier interface {
	Notify(message string, category Category)
}

// Nop discards every message.
type Nop struct{}

// NewNop creates a notifier that drops everything.
func NewNop() *Nop {
	return &Nop{}
}

func (n *Nop) Notify(message string, category Category) {}

// Ensure Nop implements Notifier.
var _ Notifier = (*Nop)(nil)
