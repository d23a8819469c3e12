// Package repository implements the database access layer for FirmDesk.
// Every repository runs its SQL through a database.Querier, which is either the
// global connection pool or an open transaction.
package repository

import (
	"context"
	"errors"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrUniqueViolation = "23505"

// Repositories provides access to all repository implementations.
// It can be instantiated with either the connection pool or a transaction.
//
// Usage with pool (non-transactional):
//
//	repos := repository.Default()
//	task, err := repos.Tasks().GetByID(ctx, 42)
//
// Usage with transaction:
//
//	err := repository.NewTxRunner().WithTx(ctx, func(stores store.StoreProvider) error {
//	    // All operations share the same transaction
//	    return stores.Tasks().UpdateStatus(ctx, task)
//	})
type Repositories struct {
	q database.Querier
}

var _ store.StoreProvider = (*Repositories)(nil)

// New binds repositories to q. A nil q means the global pool, resolved per call.
func New(q database.Querier) *Repositories {
	return &Repositories{q: q}
}

// Default returns repositories backed by the global pool.
func Default() *Repositories {
	return &Repositories{}
}

func (r *Repositories) Users() store.UserStore         { return &UserRepository{q: r.q} }
func (r *Repositories) Clients() store.ClientStore     { return &ClientRepository{q: r.q} }
func (r *Repositories) Firms() store.FirmStore         { return &FirmRepository{q: r.q} }
func (r *Repositories) Mappings() store.MappingStore   { return &MappingRepository{q: r.q} }
func (r *Repositories) Tasks() store.TaskStore         { return &TaskRepository{q: r.q} }
func (r *Repositories) Approvals() store.ApprovalStore { return &ApprovalRepository{q: r.q} }
func (r *Repositories) Audit() store.AuditStore        { return &AuditRepository{q: r.q} }

// TxRunner runs store work inside a pgx transaction on the global pool.
type TxRunner struct{}

var _ store.TxRunner = TxRunner{}

// NewTxRunner returns a TxRunner backed by database.WithTx.
func NewTxRunner() TxRunner {
	return TxRunner{}
}

// WithTx executes fn with stores bound to a single transaction.
func (TxRunner) WithTx(ctx context.Context, fn func(stores store.StoreProvider) error) error {
	return database.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

// conn resolves the querier, falling back to the global pool at call time so
// tests can swap database.DB after a repository was constructed.
func conn(q database.Querier) database.Querier {
	if q != nil {
		return q
	}
	return database.DB
}

// notFound maps pgx.ErrNoRows to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
