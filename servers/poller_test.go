package servers

import (
	"testing"
	"time"

	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/events"
)

func TestPollerDeliversReadiness(t *testing.T) {
	client := newFakeClient(t)
	registry, conn, dispatcher := newTestConnection(t, "alpha", "#alpha", client)
	rec := newRecorder(dispatcher, events.EventChat)
	connectAndWelcome(t, conn, client)

	poller := NewPoller(registry, testLogger())
	poller.Start()
	defer poller.Stop()

	conn.handlePacket(admin.ServerClientInfo{Client: admin.ClientInfo{ID: 7, Name: "alice"}})
	client.deliver(admin.ServerChat{Action: admin.ActionChat, Destination: admin.DestBroadcast, ID: 7, Message: "hi"})

	message := rec.wait(t, events.EventChat)
	if message.Message != "hi" {
		t.Fatalf("unexpected chat payload: %q", message.Message)
	}
}

func TestPollerDropsHungUpConnection(t *testing.T) {
	client := newFakeClient(t)
	registry, conn, dispatcher := newTestConnection(t, "alpha", "#alpha", client)
	rec := newRecorder(dispatcher, events.EventDisconnected)
	connectAndWelcome(t, conn, client)

	poller := NewPoller(registry, testLogger())
	poller.Start()
	defer poller.Stop()

	client.hangup()

	message := rec.wait(t, events.EventDisconnected)
	if !message.CanRetry {
		t.Fatal("a hangup of an established session must allow a retry")
	}
	if rec.count(events.EventDisconnected) != 1 {
		t.Fatal("a hangup must produce exactly one disconnected event")
	}

	// The descriptor must leave the poll set.
	deadline := time.Now().Add(3 * time.Second)
	for len(registry.OpenFds()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("descriptor still registered: %v", registry.OpenFds())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if conn.State() != admin.StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", conn.State())
	}
}

func TestPollerServesConnectionsFairly(t *testing.T) {
	logger := testLogger()
	dispatcher := events.New(logger)
	registry := NewRegistry(logger)
	rec := newRecorder(dispatcher, events.EventChat)

	clients := map[string]*fakeClient{}
	for _, id := range []string{"alpha", "beta"} {
		client := newFakeClient(t)
		clients[id] = client
		dial := func(host string, port int, timeout time.Duration) (admin.Client, error) {
			return client, nil
		}
		conn := NewConnection(Config{
			ID: id, Channel: "#" + id, Timeout: time.Second, BotName: "suds",
		}, dial, dispatcher, logger)
		registry.Add(conn)
		connectAndWelcome(t, conn, client)
		conn.handlePacket(admin.ServerClientInfo{Client: admin.ClientInfo{ID: 1, Name: id + "-player"}})
	}

	poller := NewPoller(registry, testLogger())
	poller.Start()
	defer poller.Stop()

	// Both servers speak at once; both lines must come through.
	for id, client := range clients {
		client.deliver(admin.ServerChat{
			Action: admin.ActionChat, Destination: admin.DestBroadcast, ID: 1, Message: "hello from " + id})
	}

	got := map[string]bool{}
	for len(got) < 2 {
		message := rec.wait(t, events.EventChat)
		got[message.ServerID] = true
	}
	if !got["alpha"] || !got["beta"] {
		t.Fatalf("both servers should be served, got %v", got)
	}
}

func TestPollerStops(t *testing.T) {
	registry := NewRegistry(testLogger())
	poller := NewPoller(registry, testLogger())
	poller.Start()

	done := make(chan struct{})
	go func() {
		poller.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not stop")
	}
}
