package amqp

import (
	"context"

	"uangku/internal/core"
	"uangku/internal/repository"
)

// Publisher is the publishing side of Client.
type Publisher interface {
	Publish(ctx context.Context, msg *MirrorMessage) error
}

// QueuedWriter turns remote writes into mirror messages so a worker can
// apply them to the remote store with retries.
type QueuedWriter struct {
	pub Publisher
}

var _ repository.RemoteWriter = (*QueuedWriter)(nil)

func NewQueuedWriter(pub Publisher) *QueuedWriter {
	return &QueuedWriter{pub: pub}
}

func (w *QueuedWriter) Save(ctx context.Context, tx core.Transaction) error {
	return w.pub.Publish(ctx, NewMirrorMessage(OpSave, tx.ID, &tx))
}

func (w *QueuedWriter) Update(ctx context.Context, id string, tx core.Transaction) error {
	return w.pub.Publish(ctx, NewMirrorMessage(OpUpdate, id, &tx))
}

func (w *QueuedWriter) Delete(ctx context.Context, id string) error {
	return w.pub.Publish(ctx, NewMirrorMessage(OpDelete, id, nil))
}
