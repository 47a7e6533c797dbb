package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ProfileQueue    = "profile_queue"
	NarrativeQueue  = "narrative_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type ProfileTaskPayload struct {
	JobId uuid.UUID
}

type NarrativeTaskPayload struct {
	JobId uuid.UUID
}

type Publisher interface {
	PublishProfileTask(ctx context.Context, payload ProfileTaskPayload) error

	PublishNarrativeTask(ctx context.Context, payload NarrativeTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
