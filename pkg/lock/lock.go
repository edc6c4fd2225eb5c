// Package lock serialises mutations of a single schedule across goroutines and, when Redis
// is configured, across processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stays held by someone else for the whole wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive leases keyed by an identifier.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Options tune lease duration and how long Acquire waits.
type Options struct {
	TTL          time.Duration
	Wait         time.Duration
	PollInterval time.Duration
	Prefix       string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.Wait <= 0 {
		o.Wait = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	if o.Prefix == "" {
		o.Prefix = "timetable:lock:"
	}
	return o
}

// New returns a Redis-backed locker when client is set and an in-process one otherwise.
func New(client redis.Cmdable, opts Options) Locker {
	if client == nil {
		return NewLocal(opts)
	}
	return NewRedis(client, opts)
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript pushes the expiry forward only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLocker takes leases with SET NX PX so a crashed holder frees the key after TTL.
// A live holder keeps its lease by extending it every TTL/3 until release.
type RedisLocker struct {
	client redis.Cmdable
	opts   Options
}

// NewRedis constructs a RedisLocker.
func NewRedis(client redis.Cmdable, opts Options) *RedisLocker {
	return &RedisLocker{client: client, opts: opts.withDefaults()}
}

// Acquire polls until the lease is taken, the wait budget runs out or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := l.opts.Prefix + key
	deadline := time.Now().Add(l.opts.Wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.opts.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l.hold(redisKey, token), nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		if err := sleep(ctx, l.opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

// hold starts renewing the lease and returns the release func. Release stops the renewal
// before deleting the key.
func (l *RedisLocker) hold(redisKey, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	extend := func(ctx context.Context) (bool, error) {
		n, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, l.opts.TTL.Milliseconds()).Int64()
		return n == 1, err
	}
	go func() {
		defer close(done)
		keepAlive(stop, renewInterval(l.opts.TTL), extend)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		})
	}
}

func renewInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// keepAlive calls extend every interval until stop is closed or extend reports the lease is
// gone. Transport errors are retried on the next tick since the key may still be ours.
func keepAlive(stop <-chan struct{}, interval time.Duration, extend func(context.Context) (bool, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := extend(ctx)
			cancel()
			if err == nil && !held {
				return
			}
		}
	}
}

// LocalLocker is a keyed mutex for single-process deployments.
type LocalLocker struct {
	opts  Options
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocal constructs a LocalLocker.
func NewLocal(opts Options) *LocalLocker {
	return &LocalLocker{opts: opts.withDefaults(), slots: make(map[string]*localSlot)}
}

// Acquire blocks until the key is free, the wait budget runs out or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	slot := l.ref(key)

	timer := time.NewTimer(l.opts.Wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.unref(key)
			})
		}, nil
	case <-timer.C:
		l.unref(key)
		return nil, ErrNotAcquired
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) ref(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(l.slots, key)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
