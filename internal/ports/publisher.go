package ports

import "context"

// HistoryPublisher pushes committed status-history entries to
// downstream read-model consumers. Publication is best-effort: the
// usecase layer logs failures and never fails the request over them.
type HistoryPublisher interface {
	PublishHistory(ctx context.Context, entry StatusHistoryEntry) error
}
