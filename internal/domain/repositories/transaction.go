package repositories

import "context"

// TxFn runs with a context carrying the open transaction (see GetTx).
type TxFn func(ctx context.Context) error

// TransactionManager runs multi-document writes, such as BatchCreator.CreateAll,
// atomically. fn's error rolls the transaction back.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
