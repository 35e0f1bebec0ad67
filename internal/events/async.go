package events

import (
	"context"
	"log"
	"time"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is
// never blocked. Fire-and-forget: failures are logged and do not propagate.
//
// The goroutine uses context.Background() so request cancellation does not
// abort an in-flight emit.
func EmitAsync(emitter Emitter, event *AuthEvent) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("events: async emit failed: %v", err)
		}
	}()
}
