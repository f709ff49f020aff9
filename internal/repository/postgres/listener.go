package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"skynotes/internal/repository/changefeed"
)

// NotifyChannel is the channel the documents trigger publishes collection names on.
const NotifyChannel = "document_changes"

const reconnectDelay = 5 * time.Second

// Listener holds a dedicated connection on NotifyChannel and marks the matching live
// queries dirty for every notification.
type Listener struct {
	pool   *pgxpool.Pool
	feed   *changefeed.Feed
	logger *slog.Logger
}

func NewListener(pool *pgxpool.Pool, feed *changefeed.Feed, logger *slog.Logger) *Listener {
	return &Listener{pool: pool, feed: feed, logger: logger}
}

// Run listens until ctx is cancelled, reconnecting after failures.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("change listener disconnected", "error", err, "retry_in", reconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	// The connection carries LISTEN state, so it never goes back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Debug("change listener connected", "channel", NotifyChannel)

	// Changes made while disconnected were missed.
	l.feed.NotifyAll()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.feed.Notify(n.Payload)
	}
}
