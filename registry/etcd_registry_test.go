package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// 需要本地 etcd：ETCD_ENDPOINTS=127.0.0.1:2379 go test ./registry
func TestEtcdAnnounceAndDiscover(t *testing.T) {
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ETCD_ENDPOINTS not set")
	}

	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	ctx := context.Background()
	ep1 := Endpoint{Addr: "127.0.0.1:18001", Codec: "binary"}
	ep2 := Endpoint{Addr: "127.0.0.1:18002", Codec: "binary"}

	if err := reg.Announce(ctx, "odom-test", ep1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Announce(ctx, "odom-test", ep2, 10); err != nil {
		t.Fatal(err)
	}

	found, err := reg.Discover(ctx, "odom-test")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expect 2 endpoints, got %d", len(found))
	}

	if err := reg.Withdraw(ctx, "odom-test", ep1.Addr); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	found, err = reg.Discover(ctx, "odom-test")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Addr != ep2.Addr {
		t.Fatalf("expect only %s after withdraw, got %+v", ep2.Addr, found)
	}

	reg.Withdraw(ctx, "odom-test", ep2.Addr)
}
