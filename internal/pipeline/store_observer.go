// Package pipeline — store_observer.go
//
// storeObserver persists escalation transitions into the event store: a
// row is created the moment a fall is confirmed (not at SUSPECTED — a
// false alarm that never confirms leaves no row behind), its
// notification_count is kept durable across re-notifications, and it is
// marked recovered once the subject returns to NORMAL.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/kionce57/falldetect/internal/escalation"
	"github.com/kionce57/falldetect/internal/store"
)

type storeObserver struct {
	db  *store.DB
	log *zap.Logger
}

func newStoreObserver(db *store.DB, log *zap.Logger) *storeObserver {
	return &storeObserver{db: db, log: log}
}

// OnFall implements escalation.FallObserver. The row is written once on
// first confirmation; a re-notification persists only the updated
// notification_count, so a re-notify survives an agent restart instead
// of being recomputed (and silently lost) in memory only.
func (o *storeObserver) OnFall(e escalation.FallEvent) error {
	if e.Renotification {
		return o.db.SetNotificationCount(e.EventID, e.NotificationCount)
	}
	return o.db.InsertOrReplace(store.EventRecord{
		EventID:           e.EventID,
		DetectedAt:        e.DetectedAt,
		ConfirmedAt:       e.ConfirmedAt,
		Confidence:        e.Confidence,
		NotificationCount: e.NotificationCount,
	})
}

// OnRecovered implements escalation.RecoveredObserver.
func (o *storeObserver) OnRecovered(e escalation.RecoveredEvent) error {
	return o.db.SetRecovered(e.EventID, e.RecoveredAt)
}
