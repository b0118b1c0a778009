package jobscheduler

import "context"

// Repository keeps one record per dispatch. UpsertEvent merges a later
// status into the record without erasing when earlier statuses happened.
type Repository interface {
	UpsertEvent(ctx context.Context, event DispatchEvent) error
}
