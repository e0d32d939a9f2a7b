package servers

import (
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry owns the set of connections, indexed by channel, by short id
// and, for the open ones, by file descriptor. All three indices mutate
// under one lock so a descriptor can never outlive its connection.
type Registry struct {
	log *logrus.Logger

	mu        sync.Mutex
	byChannel map[string]*Connection
	byID      map[string]*Connection
	byFd      map[int]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		log:       logger,
		byChannel: map[string]*Connection{},
		byID:      map[string]*Connection{},
		byFd:      map[int]*Connection{},
	}
}

// Add registers a connection under its channel and id, replacing any
// previous holder of either key.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	r.byChannel[strings.ToLower(conn.cfg.Channel)] = conn
	r.byID[strings.ToLower(conn.cfg.ID)] = conn
	conn.registry = r
	r.mu.Unlock()
}

// ByChannel finds the connection bridged to the given channel.
func (r *Registry) ByChannel(channel string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byChannel[strings.ToLower(channel)]
}

// ByID finds the connection with the given short server name.
func (r *Registry) ByID(id string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[strings.ToLower(id)]
}

// Find resolves the target connection for a command: by explicit server
// id when given, otherwise by the channel the command was issued on.
func (r *Registry) Find(channel, serverID string) *Connection {
	if serverID != "" {
		if conn := r.ByID(serverID); conn != nil {
			return conn
		}
		return r.ByChannel(serverID)
	}
	return r.ByChannel(channel)
}

// All returns every known connection, ordered by id.
func (r *Registry) All() []*Connection {
	r.mu.Lock()
	list := make([]*Connection, 0, len(r.byID))
	for _, conn := range r.byID {
		list = append(list, conn)
	}
	r.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].cfg.ID < list[j].cfg.ID })
	return list
}

// Refresh retires a connection and installs a fresh one built from the
// same immutable config, so a new session never inherits half-reset
// state. The old object keeps working only long enough to finish its
// teardown.
func (r *Registry) Refresh(old *Connection) *Connection {
	fresh := NewConnection(old.cfg, old.dial, old.events, r.log)
	r.Add(fresh)
	return fresh
}

// registerFd indexes an open connection by its descriptor.
func (r *Registry) registerFd(fd int, conn *Connection) {
	if fd < 0 {
		return
	}
	r.mu.Lock()
	r.byFd[fd] = conn
	r.mu.Unlock()
}

// deregisterFd drops a descriptor from the polling index. Unknown
// descriptors are a no-op, so a disconnect racing a readiness event is
// harmless.
func (r *Registry) deregisterFd(fd int) {
	r.mu.Lock()
	delete(r.byFd, fd)
	r.mu.Unlock()
}

// byFdLookup finds the connection registered under a descriptor, nil when
// it was already removed.
func (r *Registry) byFdLookup(fd int) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byFd[fd]
}

// OpenFds snapshots the descriptors currently registered for polling.
func (r *Registry) OpenFds() []int {
	r.mu.Lock()
	fds := make([]int, 0, len(r.byFd))
	for fd := range r.byFd {
		fds = append(fds, fd)
	}
	r.mu.Unlock()
	sort.Ints(fds)
	return fds
}
