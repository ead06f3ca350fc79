package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/charter"
	"github.com/aretw0/charter/internal/config"
	"github.com/aretw0/charter/pkg/adapters/file"
	"github.com/aretw0/charter/pkg/adapters/memory"
	"github.com/aretw0/charter/pkg/adapters/process"
	"github.com/aretw0/charter/pkg/adapters/redis"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/observability"
	"github.com/aretw0/charter/pkg/persistence/middleware"
	"github.com/aretw0/charter/pkg/ports"
	goredis "github.com/redis/go-redis/v9"
)

// backend is the configured session store plus its optional lock and cleanup.
type backend struct {
	store  ports.SessionStore
	locker ports.DistributedLocker
	close  func() error
}

// openBackend builds the session store selected by the configuration,
// wrapped in the PII and encryption middlewares when they are configured.
func openBackend(ctx context.Context, c *config.Config) (*backend, error) {
	b := &backend{close: func() error { return nil }}

	switch c.Store {
	case config.StoreFile:
		b.store = file.NewStore(c.SessionDir)
	case config.StoreRedis:
		opts, err := goredis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		storeOpts := []redis.Option{redis.WithPrefix(c.RedisPrefix)}
		if c.SessionTTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(c.SessionTTL))
		}
		rs := redis.NewFromClient(client, storeOpts...)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		b.store = rs
		b.locker = redis.NewLocker(client, c.RedisPrefix+"lock:")
		b.close = rs.Close
	default:
		b.store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(c.MaskArtifacts) > 0 {
		pii, err := middleware.NewPIIMiddleware(c.MaskArtifacts)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	active, fallback, err := c.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	b.store = middleware.Chain(b.store, mws...)
	return b, nil
}

// frameworkPath picks the positional argument over the configured framework.
func frameworkPath(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Framework == "" {
		return "", errors.New("no framework given: pass a path or set CHARTER_FRAMEWORK")
	}
	return cfg.Framework, nil
}

// interpreterOptions turns the configuration into interpreter options.
// A nil executor leaves the interpreter refusing every action.
func interpreterOptions(b *backend, hooks domain.LifecycleHooks, exec ports.ProtocolExecutor) []charter.Option {
	opts := []charter.Option{
		charter.WithLogger(logger),
		charter.WithSessionStore(b.store),
		charter.WithActionTimeout(cfg.ActionTimeout),
		charter.WithFailurePolicy(charter.FailurePolicy(cfg.FailurePolicy)),
		charter.WithLifecycleHooks(observability.LoggingHooks(logger).Merge(hooks)),
	}
	if b.locker != nil {
		opts = append(opts, charter.WithLocker(b.locker))
	}
	if exec != nil {
		opts = append(opts, charter.WithExecutor(exec))
	}
	return opts
}

// processExecutor runs the commands listed in the executors file.
func processExecutor() (*process.Runner, error) {
	registry, err := process.LoadRegistry(cfg.Executors)
	if err != nil {
		return nil, err
	}
	r := process.NewRunner(process.WithRegistry(registry), process.WithLogger(logger))
	logger.Debug("executors loaded", "file", cfg.Executors, "actions", strings.Join(r.Actions(), ","))
	return r, nil
}

// loadInterpreter compiles the framework with an in-memory store, for read-only commands.
func loadInterpreter(ctx context.Context, args []string) (*charter.Interpreter, error) {
	path, err := frameworkPath(args)
	if err != nil {
		return nil, err
	}
	return charter.NewContext(ctx, path, charter.WithLogger(logger))
}

// parseBindings reads role=participant pairs.
func parseBindings(pairs []string) (map[domain.Role]string, error) {
	bindings := make(map[domain.Role]string, len(pairs))
	for _, pair := range pairs {
		role, id, ok := strings.Cut(pair, "=")
		if !ok || role == "" || id == "" {
			return nil, fmt.Errorf("invalid binding %q (want role=participant)", pair)
		}
		bindings[domain.Role(role)] = id
	}
	return bindings, nil
}
