package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	domain "github.com/clovermart/api/internal/domain"
)

func newTestRepository(t *testing.T) (*GuestCartRepository, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := NewGuestCartRepositoryWithClient(client)
	if err != nil {
		t.Fatalf("NewGuestCartRepositoryWithClient: %v", err)
	}
	return repo, srv
}

func TestGuestCartRoundTrip(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	lines := []domain.GuestCartLine{
		{ProductID: "p1", Variant: "red", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}
	if err := repo.Save(ctx, "tok-1", lines, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0].ProductID != "p1" || got[0].Variant != "red" || got[0].Quantity != 2 {
		t.Fatalf("unexpected first line: %+v", got[0])
	}
}

func TestGuestCartGetUnknownTokenReturnsEmpty(t *testing.T) {
	repo, _ := newTestRepository(t)

	got, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d lines, want 0", len(got))
	}
}

func TestGuestCartSaveAppliesTTL(t *testing.T) {
	repo, srv := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "tok-ttl", []domain.GuestCartLine{{ProductID: "p1", Quantity: 1}}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if ttl := srv.TTL("guestcart:tok-ttl"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}

	srv.FastForward(2 * time.Minute)

	got, err := repo.Get(ctx, "tok-ttl")
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expired cart returned %d lines", len(got))
	}
}

func TestGuestCartDeleteIsIdempotent(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "tok-2", []domain.GuestCartLine{{ProductID: "p1", Quantity: 1}}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(ctx, "tok-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "tok-2"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	got, err := repo.Get(ctx, "tok-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("deleted cart returned %d lines", len(got))
	}
}

func TestGuestCartRejectsEmptyToken(t *testing.T) {
	repo, _ := newTestRepository(t)

	if _, err := repo.Get(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank token")
	}
	if err := repo.Save(context.Background(), "", nil, time.Hour); err == nil {
		t.Fatal("expected error for blank token")
	}
}
