package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	"github.com/target/mmk-auth-api/internal/ports"
	"github.com/target/mmk-auth-api/internal/testutil"
)

func TestLoginStateStore_SaveAndConsume(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewLoginStateStoreWithPrefix(client, "test:"+t.Name()+":")
	ctx := context.Background()

	st := domainauth.LoginState{
		State:     "state-1",
		Nonce:     "nonce-1",
		Redirect:  "/dashboard",
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, st, time.Minute))

	got, err := store.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.Equal(t, st.Nonce, got.Nonce)
	assert.Equal(t, st.Redirect, got.Redirect)
	assert.True(t, st.CreatedAt.Equal(got.CreatedAt))

	// Second consume must fail: state is single-use.
	_, err = store.Consume(ctx, "state-1")
	assert.ErrorIs(t, err, ports.ErrLoginStateNotFound)
}

func TestLoginStateStore_Expires(t *testing.T) {
	client, mr := testutil.SetupTestRedis(t)
	if mr == nil {
		t.Skip("expiry fast-forward needs miniredis")
	}
	store := NewLoginStateStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.LoginState{State: "s", Nonce: "n"}, 10*time.Minute))
	mr.FastForward(11 * time.Minute)

	_, err := store.Consume(ctx, "s")
	assert.ErrorIs(t, err, ports.ErrLoginStateNotFound)
}

func TestLoginStateStore_Validation(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewLoginStateStore(client)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, domainauth.LoginState{}, time.Minute))
	assert.Error(t, store.Save(ctx, domainauth.LoginState{State: "x"}, 0))

	_, err := store.Consume(ctx, "")
	assert.ErrorIs(t, err, ports.ErrLoginStateNotFound)

	_, err = store.Consume(ctx, "unknown")
	assert.ErrorIs(t, err, ports.ErrLoginStateNotFound)
}

func TestLoginStateStore_CorruptPayload(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)
	store := NewLoginStateStoreWithPrefix(client, "corrupt:"+t.Name()+":")
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "corrupt:"+t.Name()+":bad", "{not json", time.Minute).Err())

	_, err := store.Consume(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrLoginStateNotFound)
}
