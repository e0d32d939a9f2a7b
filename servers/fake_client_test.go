package servers

// Test doubles for the admin protocol client. The fakes sit on a real
// pipe so the poller exercises genuine descriptor readiness.

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/events"
	"github.com/sirupsen/logrus"
)

type fakeClient struct {
	mu        sync.Mutex
	r, w      *os.File
	handshake []admin.Packet
	queue     []admin.Packet
	sent      []admin.Packet
	closed    bool
	eof       bool

	// Concurrent entries into the client, which the contract forbids.
	inCall  int32
	overlap int32
}

// enter records one call into the client and flags overlapping callers.
func (f *fakeClient) enter() func() {
	if atomic.AddInt32(&f.inCall, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	return func() { atomic.AddInt32(&f.inCall, -1) }
}

func (f *fakeClient) overlapped() bool {
	return atomic.LoadInt32(&f.overlap) == 1
}

func newFakeClient(t *testing.T) *fakeClient {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("can't create pipe: %s", err)
	}
	client := &fakeClient{r: r, w: w, handshake: []admin.Packet{admin.ServerProtocol{Version: 1}}}
	t.Cleanup(func() { client.Close() })
	return client
}

func (f *fakeClient) Fd() int {
	return int(f.r.Fd())
}

func (f *fakeClient) Send(packet admin.Packet) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("send on closed client")
	}
	f.sent = append(f.sent, packet)
	return nil
}

func (f *fakeClient) Receive() (admin.Packet, error) {
	defer f.enter()()
	// Widen the window in which a concurrent caller would be caught.
	time.Sleep(time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) > 0 {
		packet := f.queue[0]
		f.queue = f.queue[1:]
		// Consume the readiness byte that announced this packet.
		buf := make([]byte, 1)
		f.r.Read(buf)
		return packet, nil
	}
	if f.eof {
		return nil, io.EOF
	}
	return nil, nil
}

func (f *fakeClient) ReceiveTimeout(timeout time.Duration) (admin.Packet, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.handshake) == 0 {
		return nil, errors.New("handshake timed out")
	}
	packet := f.handshake[0]
	f.handshake = f.handshake[1:]
	return packet, nil
}

func (f *fakeClient) Close() error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.w.Close()
	f.r.Close()
	return nil
}

// deliver queues a packet and makes the descriptor readable.
func (f *fakeClient) deliver(packet admin.Packet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, packet)
	f.w.Write([]byte{1})
}

// hangup simulates the server closing the session.
func (f *fakeClient) hangup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eof = true
	f.w.Close()
}

func (f *fakeClient) sentPackets() []admin.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]admin.Packet{}, f.sent...)
}

// recorder collects dispatched events for assertions.
type recorder struct {
	mu       sync.Mutex
	messages []events.EventMessage
	arrived  chan events.EventMessage
}

func newRecorder(dispatcher *events.EventDispatcher, codes ...events.EventCode) *recorder {
	rec := &recorder{arrived: make(chan events.EventMessage, 64)}
	dispatcher.RegisterMultiListener(codes, func(message events.EventMessage) {
		rec.mu.Lock()
		rec.messages = append(rec.messages, message)
		rec.mu.Unlock()
		rec.arrived <- message
	})
	return rec
}

func (rec *recorder) all() []events.EventMessage {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]events.EventMessage{}, rec.messages...)
}

func (rec *recorder) count(code events.EventCode) int {
	count := 0
	for _, message := range rec.all() {
		if message.EventCode == code {
			count++
		}
	}
	return count
}

// wait blocks until an event with the given code arrives.
func (rec *recorder) wait(t *testing.T, code events.EventCode) events.EventMessage {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case message := <-rec.arrived:
			if message.EventCode == code {
				return message
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", code)
		}
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

// newTestConnection builds a registered connection whose dialer hands out
// the given fake client.
func newTestConnection(t *testing.T, id, channel string, client *fakeClient) (
	*Registry, *Connection, *events.EventDispatcher) {

	t.Helper()
	logger := testLogger()
	dispatcher := events.New(logger)
	registry := NewRegistry(logger)
	dial := func(host string, port int, timeout time.Duration) (admin.Client, error) {
		return client, nil
	}
	conn := NewConnection(Config{
		ID:      id,
		Channel: channel,
		Host:    "localhost",
		Port:    3977,
		Timeout: time.Second,
		BotName: "suds",
	}, dial, dispatcher, logger)
	registry.Add(conn)
	return registry, conn, dispatcher
}

// connectAndWelcome brings a connection all the way up.
func connectAndWelcome(t *testing.T, conn *Connection, client *fakeClient) {
	t.Helper()
	if err := conn.Connect(); err != nil {
		t.Fatalf("connect failed: %s", err)
	}
	conn.handlePacket(admin.ServerWelcome{Server: admin.ServerInfo{Name: "test server", Version: "12.2"}})
	if !conn.Connected() {
		t.Fatalf("connection should be established, state is %s", conn.State())
	}
}
