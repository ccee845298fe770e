package db

import (
	"context"
)

// maxNotificationInsertAttempts bounds retries when two writers pick the same next id.
const maxNotificationInsertAttempts = 5

// InsertNotificationTx inserts a notification whose id is one greater than the current maximum.
// Concurrent inserts can compute the same id; the loser hits the primary key and retries.
func (store *SQLStore) InsertNotificationTx(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	var (
		notification Notification
		err          error
	)

	for attempt := 0; attempt < maxNotificationInsertAttempts; attempt++ {
		notification, err = store.CreateNotification(ctx, arg)
		if err == nil {
			return notification, nil
		}

		code, constraint := ErrorDescription(err)
		if code != UniqueViolationCode || constraint != NotificationsPrimaryKeyConstraint {
			return notification, err
		}
	}

	return notification, err
}
