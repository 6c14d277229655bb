package redisStore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

// Pool hands out one client per logical redis DB. Job records, transcripts and cached text each live
// in their own DB so a FLUSHDB on one leaves the others alone.
type Pool struct {
	cfg       config.RedisConfig
	mu        sync.RWMutex
	instances map[int]*Store
	logger    *logger_i.Logger
}

type Store struct {
	client *redis.Client
	Type   int
}

func NewPool(cfg config.RedisConfig) *Pool {
	return &Pool{
		cfg:       cfg,
		instances: make(map[int]*Store),
		logger:    logger_i.NewLogger("Redis Store"),
	}
}

// Get returns the store for dbType, connecting and pinging it on first use.
func (p *Pool) Get(ctx context.Context, dbType int) (*Store, error) {
	p.mu.RLock()
	instance, exists := p.instances[dbType]
	p.mu.RUnlock()
	if exists {
		return instance, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if instance, exists = p.instances[dbType]; exists {
		return instance, nil
	}
	return p.createNewStore(ctx, dbType)
}

func (p *Pool) createNewStore(ctx context.Context, dbType int) (*Store, error) {
	log := p.logger.With("db", strconv.Itoa(dbType))
	newClient := redis.NewClient(&redis.Options{
		Addr:                  p.cfg.Addr,
		Password:              p.cfg.Password,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := newClient.Ping(pingCtx).Err(); err != nil {
		log.Error("Redis is offline", "addr", p.cfg.Addr, "error", err)
		_ = newClient.Close()
		return nil, fmt.Errorf("redis %s db %d: %w", p.cfg.Addr, dbType, err)
	}

	log.Info("Redis store init successfully")
	newStore := &Store{client: newClient, Type: dbType}
	p.instances[dbType] = newStore
	return newStore, nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Info("Closing Redis Stores")
	for db, store := range p.instances {
		if err := store.client.Close(); err != nil {
			p.logger.Error("Error closing redis client", "db", db, "error", err)
		}
		delete(p.instances, db)
	}
	p.logger.Info("Redis Store Closed successfully")
}

// NewTestStore wraps an existing client, used with miniredis in tests.
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client}
}
