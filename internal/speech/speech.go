package speech

import (
	"context"
	"fmt"
)

// ServiceError reports a synthesis or recognition failure, including calls
// that exceeded their bounded wait. Silence is not an error: Recognize
// returns empty text when no intelligible speech is present.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("speech %s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Bridge converts agent text to spoken audio and inbound call audio to text.
// Implementations are stateless per call and must not block indefinitely.
type Bridge interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Recognize(ctx context.Context, audio []byte) (string, error)
}
