package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisKV_Operations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := NewRedisKV(client, "idbridge")
	exerciseKV(t, kv)

	// Keys are namespaced by prefix.
	if err := kv.SetItem(context.Background(), "idbridge.session", "v"); err != nil {
		t.Fatal(err)
	}
	if got, err := mr.Get("idbridge:idbridge.session"); err != nil || got != "v" {
		t.Errorf("raw key = %q, %v", got, err)
	}

	// Caller owns the client.
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("client should stay open: %v", err)
	}
}

func TestDialRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Engine = EngineRedis
	cfg.RedisAddr = mr.Addr()

	kv, err := Open(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	if err := kv.SetItem(context.Background(), "k", "v"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("idbridge:k") {
		t.Error("expected prefixed key in redis")
	}
}

func TestRedisKV_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	kv := NewRedisKV(client, "")

	mr.Close()

	if _, _, err := kv.GetItem(context.Background(), "k"); !errors.Is(err, ErrRedisUnavailable) {
		t.Errorf("GetItem err = %v, want ErrRedisUnavailable", err)
	}

	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	if _, err := DialRedisKV(context.Background(), cfg); !errors.Is(err, ErrRedisUnavailable) {
		t.Errorf("DialRedisKV err = %v, want ErrRedisUnavailable", err)
	}
}
