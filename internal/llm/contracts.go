package llm

import "context"

// TokenStreamer is the model boundary the pipeline depends on. Stream sends
// one chunk of report text to the model and delivers raw output tokens to
// emit, in generation order, until the model stops or ctx is cancelled.
// emit returning an error aborts generation promptly (broken client sink).
type TokenStreamer interface {
	Stream(ctx context.Context, text string, emit func(token string) error) error
}
