package speech

import "context"

// PassthroughBridge is the simulation speech bridge. Text passes through
// unchanged in both directions, standing in for audio that never exists.
type PassthroughBridge struct{}

func NewPassthroughBridge() *PassthroughBridge {
	return &PassthroughBridge{}
}

func (b *PassthroughBridge) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (b *PassthroughBridge) Recognize(ctx context.Context, audio []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(audio), nil
}
