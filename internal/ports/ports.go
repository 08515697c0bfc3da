package ports

import (
	"context"
	"time"
)

// Rewriter is the text-generation collaborator. Implementations wrap
// types.ErrRateLimited when the upstream throttles the request.
type Rewriter interface {
	Rewrite(ctx context.Context, system, user string) (string, error)
}

// Progress receives one call per finished interval.
type Progress interface {
	IntervalDone(completed, total int)
}

type ProgressFunc func(completed, total int)

func (f ProgressFunc) IntervalDone(completed, total int) { f(completed, total) }

// BlobStore is an opaque key-value blob collection. Keys use "/" separators.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

type VideoTool interface {
	ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error)
}

type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Message is one delivery from a job queue. Exactly one of Ack or Nack must be
// called.
type Message struct {
	Body []byte
	Ack  func() error
	Nack func(requeue bool) error
}

type Consumer interface {
	Consume(ctx context.Context) (<-chan Message, error)
}
