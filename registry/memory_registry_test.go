package registry

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAnnounceDiscoverWithdraw(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	reg.Announce(ctx, "odom", Endpoint{Addr: "127.0.0.1:8002"}, 10)
	reg.Announce(ctx, "odom", Endpoint{Addr: "127.0.0.1:8001"}, 10)
	reg.Announce(ctx, "other", Endpoint{Addr: "127.0.0.1:9000"}, 10)

	found, _ := reg.Discover(ctx, "odom")
	if len(found) != 2 || found[0].Addr != "127.0.0.1:8001" {
		t.Fatalf("expect 2 sorted endpoints, got %+v", found)
	}

	reg.Withdraw(ctx, "odom", "127.0.0.1:8001")
	found, _ = reg.Discover(ctx, "odom")
	if len(found) != 1 || found[0].Addr != "127.0.0.1:8002" {
		t.Fatalf("expect remaining endpoint, got %+v", found)
	}
}

func TestMemoryWatch(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	ch := reg.Watch(ctx, "odom")
	reg.Announce(ctx, "odom", Endpoint{Addr: "127.0.0.1:8001"}, 10)

	select {
	case endpoints := <-ch:
		if len(endpoints) != 1 {
			t.Fatalf("expect 1 endpoint, got %+v", endpoints)
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not fire")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expect channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

func TestKeyPrefix(t *testing.T) {
	if keyPrefix("odom") != "/ghost/channels/odom/" {
		t.Fatalf("unexpected prefix %s", keyPrefix("odom"))
	}
	if keyPrefix("") != "/ghost/channels/_/" {
		t.Fatalf("unexpected prefix for default channel %s", keyPrefix(""))
	}
}
