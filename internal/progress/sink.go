package progress

import "context"

// Sink consumes batches of events. Implementations must tolerate repeated
// calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it, so the engine and
// runner stay agnostic about buffering and persistence. A nil *Hub is a
// valid no-op Emitter.
type Emitter interface {
	Emit(evt Event)
}
