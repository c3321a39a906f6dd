// Package leaselock provides expiring, self-renewing locks stored in the
// app_locks table. A holder that dies stops renewing and its lease lapses
// after the TTL.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/chive/backend/pkg/logger"
)

const (
	DefaultTTL = 2 * time.Minute
	minRenew   = 10 * time.Millisecond
)

var (
	ErrBusy     = errors.New("lease lock busy")
	ErrLost     = errors.New("lease lock lost")
	ErrEmptyKey = errors.New("lease lock key is empty")
)

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Locker struct {
	db         DB
	ttl        time.Duration
	renewEvery time.Duration
	owner      string
}

type Option func(*Locker)

func WithTTL(d time.Duration) Option {
	return func(l *Locker) { l.ttl = d }
}

// WithRenewInterval sets how often a held lease is extended. It is capped
// below the TTL.
func WithRenewInterval(d time.Duration) Option {
	return func(l *Locker) { l.renewEvery = d }
}

// WithOwner prefixes lease tokens so rows in app_locks show which process
// holds them.
func WithOwner(name string) Option {
	return func(l *Locker) { l.owner = name }
}

func New(db DB, opts ...Option) *Locker {
	l := &Locker{db: db, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(l)
	}
	if l.ttl <= 0 {
		l.ttl = DefaultTTL
	}
	if l.renewEvery <= 0 || l.renewEvery >= l.ttl {
		l.renewEvery = max(l.ttl/2, minRenew)
	}
	return l
}

// ProjectKey is the lock key guarding pipeline runs of one project.
func ProjectKey(projectID int64) string {
	return fmt.Sprintf("pipe:project:%d", projectID)
}

type Lease struct {
	Key   string
	Token string

	locker *Locker
	ctx    context.Context
	cancel context.CancelCauseFunc
	once   sync.Once
	done   chan struct{}
}

// Context is cancelled with ErrLost when renewal fails and with
// context.Canceled on Release.
func (l *Lease) Context() context.Context {
	return l.ctx
}

// TryAcquire takes the lock for key or fails with ErrBusy when another live
// lease holds it.
func (l *Locker) TryAcquire(ctx context.Context, key string) (*Lease, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := id
	if l.owner != "" {
		token = l.owner + ":" + id
	}

	var got string
	err = l.db.QueryRow(ctx, tryAcquireSQL, key, token, l.ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	lease := &Lease{
		Key:    key,
		Token:  token,
		locker: l,
		ctx:    leaseCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go lease.keepAlive()
	return lease, nil
}

// WithLease runs fn while holding key. fn's context ends if the lease is lost.
func (l *Locker) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := l.TryAcquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release lease", "key", key, "err", err)
		}
	}()
	return fn(lease.ctx)
}

func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.done)
		l.cancel(context.Canceled)
	})
	_, err := l.locker.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) keepAlive() {
	t := time.NewTicker(l.locker.renewEvery)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-l.ctx.Done():
			return
		case <-t.C:
			if err := l.renew(); err != nil {
				logger.Warn("Lease renewal failed", "key", l.Key, "err", err)
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renew() error {
	ctx, cancel := context.WithTimeout(l.ctx, l.locker.renewEvery)
	defer cancel()
	var got string
	err := l.locker.db.QueryRow(ctx, renewSQL, l.Key, l.Token, l.locker.ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrLost
	}
	return err
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
