package notification

import (
	"context"
	"log"
	"time"
)

// enqueueTimeout is the max time allowed for a single async enqueue.
const enqueueTimeout = 5 * time.Second

// SendAsync runs Enqueue in a goroutine with a short timeout so the caller is
// not blocked. Use from request paths after the transaction commits; errors
// are logged, never surfaced.
//
// notifier and msg may be nil; SendAsync returns immediately without starting
// a goroutine. The goroutine uses context.Background() so request
// cancellation does not abort an in-flight enqueue.
func SendAsync(notifier Notifier, msg *Message) {
	if notifier == nil || msg == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		if err := notifier.Enqueue(ctx, msg); err != nil {
			log.Printf("notification: async enqueue failed for %s: %v", msg.Kind, err)
		}
	}()
}
