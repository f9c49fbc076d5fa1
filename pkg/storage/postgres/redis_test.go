package postgres

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{
		URL:        "redis://" + mr.Addr(),
		MaxRetries: 3,
		PoolSize:   10,
	})
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	defer client.Close()

	opts := client.Options()
	if opts.PoolSize != 10 {
		t.Errorf("PoolSize = %d, want 10", opts.PoolSize)
	}
	if opts.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", opts.MaxRetries)
	}
}

func TestNewRedisClient_Overrides(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	client, err := NewRedisClient(context.Background(), RedisConfig{
		URL:      "redis://" + mr.Addr() + "/0",
		Password: "secret",
		DB:       2,
	})
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	defer client.Close()

	if got := client.Options().DB; got != 2 {
		t.Errorf("DB = %d, want 2", got)
	}
	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := mr.DB(2).Get("k"); got != "v" {
		t.Errorf("value in db 2 = %q, want v", got)
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{URL: "not-a-url://"})
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisConfig{URL: "redis://" + addr})
	if err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
