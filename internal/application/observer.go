package application

import (
	"context"

	"chainnotes/internal/domain"
)

// Observer receives outcome notifications from the services, typically for metrics.
type Observer interface {
	OnSnapshotRefreshed(transactions int)
	OnSnapshotPersistFailed()
	OnTextStored()
	OnOrphanedContent()
	OnUpstreamFailure(source string)
}

// EventPublisher announces completed writes to downstream consumers.
type EventPublisher interface {
	PublishSnapshotRefreshed(ctx context.Context, snapshot domain.TransactionSnapshot) error
	PublishTextStored(ctx context.Context, entry domain.LabeledText) error
}

type nopObserver struct{}

func (nopObserver) OnSnapshotRefreshed(int)  {}
func (nopObserver) OnSnapshotPersistFailed() {}
func (nopObserver) OnTextStored()            {}
func (nopObserver) OnOrphanedContent()       {}
func (nopObserver) OnUpstreamFailure(string) {}
