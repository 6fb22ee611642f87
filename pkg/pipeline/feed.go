package pipeline

import "context"

// Feed is a running stream whose loop executes on its own goroutine.
// Parts arrive in frame order over a channel holding at most one part,
// so the loop never runs more than one frame ahead of the consumer.
type Feed struct {
	parts  chan []byte
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Start launches the loop for a new stream. It returns ErrBusy when a
// stream is already running.
func (l *Loop) Start(ctx context.Context) (*Feed, error) {
	if !l.acquire() {
		return nil, ErrBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{
		parts:  make(chan []byte, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(f.done)
		defer close(f.parts)
		f.err = l.run(ctx, func(part []byte) error {
			select {
			case f.parts <- part:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return f, nil
}

// Parts yields encoded multipart chunks. It is closed when the loop ends.
func (f *Feed) Parts() <-chan []byte {
	return f.parts
}

// Stop cancels the loop and waits for it to release the camera.
func (f *Feed) Stop() {
	f.cancel()
	<-f.done
}

// Err returns why the loop ended. Valid once Parts is closed.
func (f *Feed) Err() error {
	<-f.done
	return f.err
}
