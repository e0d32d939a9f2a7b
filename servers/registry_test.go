package servers

import (
	"testing"
	"time"

	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/events"
)

func newBareConnection(id, channel string) *Connection {
	logger := testLogger()
	dial := func(host string, port int, timeout time.Duration) (admin.Client, error) {
		return nil, nil
	}
	return NewConnection(Config{ID: id, Channel: channel}, dial, events.New(logger), logger)
}

func TestRegistryLookups(t *testing.T) {
	registry := NewRegistry(testLogger())
	alpha := newBareConnection("alpha", "#alpha")
	beta := newBareConnection("beta", "#beta")
	registry.Add(alpha)
	registry.Add(beta)

	if registry.ByID("alpha") != alpha {
		t.Fatal("lookup by id failed")
	}
	if registry.ByID("ALPHA") != alpha {
		t.Fatal("id lookup should be case insensitive")
	}
	if registry.ByChannel("#Beta") != beta {
		t.Fatal("channel lookup should be case insensitive")
	}
	if registry.ByID("gamma") != nil {
		t.Fatal("unknown id should yield nil")
	}

	all := registry.All()
	if len(all) != 2 || all[0] != alpha || all[1] != beta {
		t.Fatalf("All should list connections ordered by id, got %v", all)
	}
}

func TestRegistryFindPrecedence(t *testing.T) {
	registry := NewRegistry(testLogger())
	alpha := newBareConnection("alpha", "#alpha")
	beta := newBareConnection("beta", "#beta")
	registry.Add(alpha)
	registry.Add(beta)

	// Explicit server id wins over the channel.
	if registry.Find("#alpha", "beta") != beta {
		t.Fatal("explicit id should win")
	}
	// An id that happens to be a channel still resolves.
	if registry.Find("", "#alpha") != alpha {
		t.Fatal("channel fallback of the id failed")
	}
	// No id falls back to the channel.
	if registry.Find("#alpha", "") != alpha {
		t.Fatal("channel resolution failed")
	}
	if registry.Find("#nowhere", "") != nil {
		t.Fatal("unknown channel should yield nil")
	}
}

func TestRegistryRefreshReplacesConnection(t *testing.T) {
	registry := NewRegistry(testLogger())
	old := newBareConnection("alpha", "#alpha")
	registry.Add(old)

	fresh := registry.Refresh(old)
	if fresh == old {
		t.Fatal("refresh must build a new connection")
	}
	if fresh.Config() != old.Config() {
		t.Fatal("refresh must keep the configuration")
	}
	if registry.ByID("alpha") != fresh {
		t.Fatal("registry should resolve to the fresh connection")
	}
	if registry.ByChannel("#alpha") != fresh {
		t.Fatal("channel index should resolve to the fresh connection")
	}
	if fresh.State() != admin.StateDisconnected {
		t.Fatal("fresh connection must start disconnected")
	}
}

func TestRegistryFdIndex(t *testing.T) {
	registry := NewRegistry(testLogger())
	conn := newBareConnection("alpha", "#alpha")
	registry.Add(conn)

	registry.registerFd(42, conn)
	if registry.byFdLookup(42) != conn {
		t.Fatal("fd lookup failed")
	}
	if fds := registry.OpenFds(); len(fds) != 1 || fds[0] != 42 {
		t.Fatalf("unexpected open fds: %v", fds)
	}

	// Negative descriptors are never indexed.
	registry.registerFd(-1, conn)
	if fds := registry.OpenFds(); len(fds) != 1 {
		t.Fatalf("negative fd must not be indexed, got %v", fds)
	}

	// Deregistering is idempotent.
	registry.deregisterFd(42)
	registry.deregisterFd(42)
	if registry.byFdLookup(42) != nil {
		t.Fatal("fd should be gone")
	}
	if fds := registry.OpenFds(); len(fds) != 0 {
		t.Fatalf("fd index should be empty, got %v", fds)
	}
}
