package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-auth-api/config"
)

// redisTopology names the deployment shape selected by RedisConfig.
type redisTopology string

const (
	topologyDirect   redisTopology = "direct"
	topologySentinel redisTopology = "sentinel"
	topologyCluster  redisTopology = "cluster"
)

// redisOptions translates RedisConfig into universal client options.
// A redis:// or rediss:// URI supplies address, credentials, DB and TLS; explicit
// password and DB settings only fill what the URI leaves empty.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, redisTopology, error) {
	opts := &redis.UniversalOptions{Password: cfg.Password, DB: cfg.DB}

	uri := strings.TrimSpace(cfg.URI)
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		uri = parsed.Addr
		opts.Username = parsed.Username
		opts.TLSConfig = parsed.TLSConfig
		if parsed.Password != "" {
			opts.Password = parsed.Password
		}
		if parsed.DB != 0 {
			opts.DB = parsed.DB
		}
	}

	switch {
	case cfg.UseCluster:
		addrs := compactAddrs(cfg.ClusterNodes)
		if len(addrs) == 0 && uri != "" {
			addrs = []string{uri}
		}
		if len(addrs) == 0 {
			return nil, "", errors.New("redis cluster configuration requires at least one address")
		}
		opts.Addrs = addrs
		// Cluster mode has no logical databases.
		opts.DB = 0
		return opts, topologyCluster, nil
	case cfg.UseSentinel:
		addrs := compactAddrs(cfg.SentinelNodes)
		if len(addrs) == 0 {
			return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		if strings.TrimSpace(cfg.SentinelMasterName) == "" {
			return nil, "", errors.New("redis sentinel configuration requires a master name")
		}
		opts.Addrs = addrs
		opts.MasterName = strings.TrimSpace(cfg.SentinelMasterName)
		opts.SentinelPassword = cfg.SentinelPassword
		return opts, topologySentinel, nil
	default:
		if uri == "" {
			return nil, "", errors.New("redis direct configuration requires a URI")
		}
		opts.Addrs = []string{uri}
		return opts, topologyDirect, nil
	}
}

// ConnectRedis dials the login state store and pings it before returning.
//
//nolint:ireturn // redis.UniversalClient covers direct, sentinel and cluster clients.
func ConnectRedis(ctx context.Context, cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, topology, err := redisOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	client := newRedisClient(opts, topology)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		attrs := []any{"topology", string(topology), "addrs", strings.Join(opts.Addrs, ",")}
		if opts.MasterName != "" {
			attrs = append(attrs, "master", opts.MasterName)
		}
		cfg.Logger.InfoContext(ctx, "redis connected", attrs...)
	}
	return client, nil
}

//nolint:ireturn // see ConnectRedis.
func newRedisClient(opts *redis.UniversalOptions, topology redisTopology) redis.UniversalClient {
	if topology == topologyCluster {
		// A single seed node would otherwise select a plain client.
		return redis.NewClusterClient(opts.Cluster())
	}
	return redis.NewUniversalClient(opts)
}

func compactAddrs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
