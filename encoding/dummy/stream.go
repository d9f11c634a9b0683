package dummy

import (
	"context"
)

// StreamEncoder forwards stream chunks as-is: plain text needs no assembly
// or validation.
type StreamEncoder struct{}

func NewStreamEncoder() *StreamEncoder {
	return new(StreamEncoder)
}

func (e *StreamEncoder) EnableValidate() {}

func (e *StreamEncoder) GetFormatInstructions() string {
	return ""
}

func (e *StreamEncoder) Read(ctx context.Context, ch <-chan string) <-chan any {
	out := make(chan any)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
