//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"courier/domain"
	"courier/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ConnectionSink is one open client connection.
// Send must not block: it enqueues the frame or fails.
type ConnectionSink interface {
	ID() string
	UserID() string
	Send(evt event.Outbound) error
}

// TokenVerifier is the external token-verification collaborator.
// It returns the authenticated user ID.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// WebPusher delivers a payload to a browser push endpoint.
type WebPusher interface {
	Push(ctx context.Context, sub domain.PushSubscription, payload []byte) error
}

// MessageSender accepts a send request and returns once the message is
// durably appended. Fan-out continues after Send returns.
type MessageSender interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
}

// SendHandler executes one send command inside a delivery shard.
type SendHandler interface {
	HandleSend(ctx context.Context, cmd domain.SendMessageCommand)
}
