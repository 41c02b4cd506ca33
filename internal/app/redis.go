package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"shuttle/internal/config"
	internalRedis "shuttle/internal/redis"
)

// NewRedisClient creates a new Redis client with optional New Relic instrumentation.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if nrApp != nil {
		client.AddHook(&nrRedisHook{app: nrApp})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// nrRedisHook reports Redis commands as New Relic datastore segments. The
// collection is the key namespace, so handles, locks and positions show up
// separately.
type nrRedisHook struct {
	app *newrelic.Application
}

func (h *nrRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *nrRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			defer startRedisSegment(txn, cmd.Name(), keyNamespace(cmd)).End()
		}
		return next(ctx, cmd)
	}
}

func (h *nrRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			collection := ""
			if len(cmds) > 0 {
				collection = keyNamespace(cmds[0])
			}
			defer startRedisSegment(txn, "pipeline", collection).End()
		}
		return next(ctx, cmds)
	}
}

func startRedisSegment(txn *newrelic.Transaction, op, collection string) *newrelic.DatastoreSegment {
	return &newrelic.DatastoreSegment{
		StartTime:  txn.StartSegmentNow(),
		Product:    newrelic.DatastoreRedis,
		Operation:  op,
		Collection: collection,
	}
}

// keyNamespace is the part of the command's first key before ':'.
func keyNamespace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "redis"
	}
	key, ok := args[1].(string)
	if !ok {
		return "redis"
	}
	ns, _, _ := strings.Cut(key, ":")
	return ns
}

// Stores bundles the short-lived state kept in Redis.
type Stores struct {
	Locks     internalRedis.LockStoreInterface
	Positions internalRedis.PositionStoreInterface
	Handles   internalRedis.HandleStoreInterface
	Responses internalRedis.ResponseCacheInterface
	Views     internalRedis.ViewCacheInterface // nil without Redis
}

// NewStores backs every store with client, or with in-process maps when
// client is nil. The in-process variants only hold for a single replica.
func NewStores(client *redis.Client) Stores {
	if client == nil {
		return Stores{
			Locks:     internalRedis.NewLocalLockStore(),
			Positions: internalRedis.NewLocalPositionStore(),
			Handles:   internalRedis.NewLocalHandleStore(time.Now),
			Responses: internalRedis.NewLocalResponseCache(),
		}
	}
	return Stores{
		Locks:     internalRedis.NewLockStore(client),
		Positions: internalRedis.NewPositionStore(client),
		Handles:   internalRedis.NewHandleStore(client),
		Responses: internalRedis.NewResponseCache(client),
		Views:     internalRedis.NewCacheStore(client),
	}
}
