package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"skynotes/internal/domain"
	"skynotes/internal/domain/repositories"
	"skynotes/internal/repository/changefeed"
)

// Store is a DocumentStore backed by a single JSONB table. Live queries re-run when
// the table's trigger announces a change on the collection's notify channel.
type Store struct {
	pool     *pgxpool.Pool
	tx       repositories.TransactionManager
	feed     *changefeed.Feed
	listener *Listener
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewStore creates the store and starts its change listener. Close also closes the
// pool.
func NewStore(config *RepositoryConfig) *Store {
	s := &Store{
		pool:   config.Pool,
		tx:     NewTransactionManager(config.Pool, config.Logger),
		logger: config.Logger,
	}
	s.feed = changefeed.New(s.query, config.Logger)
	s.listener = NewListener(config.Pool, s.feed, config.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.listener.Run(ctx)

	return s
}

func (s *Store) Create(ctx context.Context, collection string, fields repositories.Fields) (string, error) {
	query, args, err := buildInsert(collection, fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var id string
	if err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if IsPgPermissionError(err) {
			return "", fmt.Errorf("create %s: %w", collection, domain.ErrForbidden)
		}
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

// CreateAll inserts every document in one transaction.
func (s *Store) CreateAll(ctx context.Context, collection string, docs []repositories.Fields) ([]string, error) {
	ids := make([]string, 0, len(docs))
	err := s.tx.ExecTx(ctx, func(txCtx context.Context) error {
		for _, fields := range docs {
			id, err := s.Create(txCtx, collection, fields)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*repositories.RawDocument, error) {
	query := fmt.Sprintf(`SELECT id::text, fields FROM %s WHERE collection = $1 AND id = $2`, documentsTable)

	var doc repositories.RawDocument
	var raw []byte
	if err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, collection, id).Scan(&doc.ID, &raw); err != nil {
		return nil, classifyError("get", collection, id, err)
	}
	if err := json.Unmarshal(raw, &doc.Fields); err != nil {
		return nil, fmt.Errorf("get %s/%s: decode fields: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields repositories.Fields) error {
	query, args, err := buildUpdate(collection, id, fields)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	tag, err := GetExecutor(ctx, s.pool).Exec(ctx, query, args...)
	if err != nil {
		return classifyError("update", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("%s/%s not found", collection, id)}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = $2`, documentsTable)

	tag, err := GetExecutor(ctx, s.pool).Exec(ctx, query, collection, id)
	if err != nil {
		return classifyError("delete", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("%s/%s not found", collection, id)}
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q repositories.Query, l repositories.Listener) (repositories.Unsubscribe, error) {
	return s.feed.Watch(ctx, q, l)
}

// Close stops the listener and every live query, then closes the pool.
func (s *Store) Close() error {
	s.cancel()
	s.feed.Close()
	s.pool.Close()
	return nil
}

func (s *Store) query(ctx context.Context, q repositories.Query) ([]repositories.RawDocument, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	rows, err := GetExecutor(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		if IsPgPermissionError(err) {
			return nil, fmt.Errorf("query %s: %w", q.Collection, domain.ErrForbidden)
		}
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []repositories.RawDocument
	for rows.Next() {
		var doc repositories.RawDocument
		var raw []byte
		if err := rows.Scan(&doc.ID, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		if err := json.Unmarshal(raw, &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s fields: %w", q.Collection, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return docs, nil
}
