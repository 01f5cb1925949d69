package redis

// Package redis provides Redis-backed adapters.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	"github.com/target/mmk-auth-api/internal/ports"
)

var _ ports.LoginStateStore = (*LoginStateStore)(nil)

const defaultLoginStatePrefix = "mmk-auth:login-state:"

// LoginStateStore keeps federated login handshake state in Redis.
// Entries expire by TTL and are removed atomically on first read with GETDEL, so a
// callback can never be replayed against the same state.
type LoginStateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewLoginStateStore creates a login state store using the default key prefix.
func NewLoginStateStore(client redis.UniversalClient) *LoginStateStore {
	return NewLoginStateStoreWithPrefix(client, defaultLoginStatePrefix)
}

// NewLoginStateStoreWithPrefix creates a login state store with a custom key prefix.
func NewLoginStateStoreWithPrefix(client redis.UniversalClient, prefix string) *LoginStateStore {
	return &LoginStateStore{client: client, prefix: prefix}
}

// Save stores st under its State for ttl.
func (s *LoginStateStore) Save(ctx context.Context, st domainauth.LoginState, ttl time.Duration) error {
	if st.State == "" {
		return errors.New("login state cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("login state ttl must be positive")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal login state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+st.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Consume returns and deletes the state in one round trip.
func (s *LoginStateStore) Consume(ctx context.Context, state string) (domainauth.LoginState, error) {
	if state == "" {
		return domainauth.LoginState{}, ports.ErrLoginStateNotFound
	}
	data, err := s.client.GetDel(ctx, s.prefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.LoginState{}, ports.ErrLoginStateNotFound
		}
		return domainauth.LoginState{}, fmt.Errorf("redis getdel: %w", err)
	}
	var st domainauth.LoginState
	if err := json.Unmarshal(data, &st); err != nil {
		return domainauth.LoginState{}, fmt.Errorf("unmarshal login state: %w", err)
	}
	return st, nil
}
