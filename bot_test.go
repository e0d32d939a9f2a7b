package suds

import (
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ropenttd/suds/events"
	"github.com/ropenttd/suds/servers"
	"github.com/sirupsen/logrus"
)

// TestBotNewWrongFiles tests creation failing if config files are not found.
func TestBotNewWrongFiles(t *testing.T) {
	if _, err := New("config/file/path", "texts/file/path"); err == nil {
		t.Fatal("Bot creation should have failed.")
	}
}

// limitTestBot builds a bare bot with just the shared counters set up.
func limitTestBot() *Bot {
	return &Bot{
		Config:               &Configuration{CommandsPer5: 3, UrlAnnounceIntervalMinutes: 15},
		commandUseLimit:      map[string]int{},
		commandWarn:          map[string]bool{},
		lastURLAnnouncedTime: map[string]time.Time{},
	}
}

func TestExceededCommandLimit(t *testing.T) {
	bot := limitTestBot()

	for i := 0; i < 3; i++ {
		if limited, _ := bot.exceededCommandLimit("rcon", "alice", "#alpha"); limited {
			t.Fatalf("use %d should not be limited", i+1)
		}
	}
	limited, warn := bot.exceededCommandLimit("rcon", "alice", "#alpha")
	if !limited || !warn {
		t.Fatalf("expected limit with warning, got limited=%t warn=%t", limited, warn)
	}
	// The warning fires once per channel.
	if _, warn := bot.exceededCommandLimit("rcon", "alice", "#alpha"); warn {
		t.Fatal("warning should only fire once")
	}
	// Another user is counted separately.
	if limited, _ := bot.exceededCommandLimit("rcon", "bob", "#alpha"); limited {
		t.Fatal("limits are per command and person")
	}

	bot.clearCommandLimits()
	if limited, _ := bot.exceededCommandLimit("rcon", "alice", "#alpha"); limited {
		t.Fatal("counters should reset on clear")
	}
}

// The counters are written by the transport goroutine and cleared by a
// ticker, the announcement times by per-message URL handlers. Unguarded
// map access here dies with an unrecoverable runtime throw.
func TestSharedCountersSurviveConcurrency(t *testing.T) {
	bot := limitTestBot()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			bot.exceededCommandLimit("rcon", fmt.Sprintf("nick%d", i), "#alpha")
			bot.markURLAnnounced(fmt.Sprintf("link%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			bot.exceededCommandLimit("rcon", fmt.Sprintf("nick%d", i), "#beta")
			bot.markURLAnnounced(fmt.Sprintf("link%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			bot.clearCommandLimits()
		}
	}()
	wg.Wait()
}

func TestMarkURLAnnounced(t *testing.T) {
	bot := limitTestBot()

	if !bot.markURLAnnounced("http://example.com/#alpha") {
		t.Fatal("first announcement should go through")
	}
	if bot.markURLAnnounced("http://example.com/#alpha") {
		t.Fatal("repeat announcement should be throttled")
	}
	if !bot.markURLAnnounced("http://example.com/#beta") {
		t.Fatal("other channels are throttled separately")
	}
}

func TestConnectionForResolution(t *testing.T) {
	logger := logrus.New()
	logger.Out = io.Discard
	dispatcher := events.New(logger)
	registry := servers.NewRegistry(logger)
	registry.Add(servers.NewConnection(servers.Config{ID: "alpha", Channel: "#alpha"}, nil, dispatcher, logger))
	registry.Add(servers.NewConnection(servers.Config{ID: "beta", Channel: "#beta"}, nil, dispatcher, logger))
	bot := &Bot{Servers: registry}
	sourceEvent := &events.EventMessage{Channel: "#alpha"}

	// An explicit server id wins and is consumed.
	conn, params := bot.connectionFor(sourceEvent, []string{"beta", "clients"})
	if conn == nil || conn.ID() != "beta" {
		t.Fatalf("expected beta, got %v", conn)
	}
	if len(params) != 1 || params[0] != "clients" {
		t.Fatalf("server id should be consumed, got %v", params)
	}

	// Otherwise the channel decides and the parameters stay whole.
	conn, params = bot.connectionFor(sourceEvent, []string{"clients"})
	if conn == nil || conn.ID() != "alpha" {
		t.Fatalf("expected alpha, got %v", conn)
	}
	if len(params) != 1 || params[0] != "clients" {
		t.Fatalf("parameters should stay whole, got %v", params)
	}
}

func TestAddUserClosedDatabase(t *testing.T) {
	logger := logrus.New()
	logger.Out = io.Discard
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("can't open database: %s", err)
	}
	db.Close()
	bot := &Bot{Db: db, Log: logger}

	// A closed database is not a driver error and must not panic.
	if err := bot.addUser("alice", "secret", false, false); err == nil {
		t.Fatal("expected an error from a closed database")
	}
}

func TestGenerateDownloadURL(t *testing.T) {
	cases := []struct {
		version, osType, want string
	}{
		{"1.10.3", "", "http://www.openttd.org/en/download-stable/1.10.3"},
		{"1.11.0-RC1", "", "http://www.openttd.org/en/download-stable/1.11.0-RC1"},
		{"r27000", "", "http://www.openttd.org/en/download-trunk/r27000"},
		{"1.10.3", "lin64", "http://binaries.openttd.org/releases/1.10.3/openttd-1.10.3-linux-generic-amd64.tar.xz"},
		{"1.10.3", "win64", "http://binaries.openttd.org/releases/1.10.3/openttd-1.10.3-windows-win64.zip"},
		{"1.10.3", "osx", "http://binaries.openttd.org/releases/1.10.3/openttd-1.10.3-macosx-universal.zip"},
		{"r27000", "source", "http://binaries.openttd.org/nightlies/trunk/r27000/openttd-trunk-r27000-source.tar.xz"},
		{"1.10.3", "amiga", ""},
		{"custom-build", "", ""},
		{"custom-build", "lin", ""},
	}
	for _, c := range cases {
		if got := generateDownloadURL(c.version, c.osType); got != c.want {
			t.Errorf("generateDownloadURL(%q, %q) = %q, want %q", c.version, c.osType, got, c.want)
		}
	}
}
