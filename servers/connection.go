// Package servers manages the bot's links to OpenTTD game servers: one
// Connection per configured server, a Registry owning all of them and a
// Poller multiplexing their sockets on a single goroutine.
package servers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/events"
	"github.com/sirupsen/logrus"
)

// RconSilent marks an idle rcon slot. Output arriving while the slot is
// silent is not relayed anywhere.
const RconSilent = "Silent"

var (
	ErrNotConnected = errors.New("not connected to the server")
	ErrRconBusy     = errors.New("still processing previous rcon command")
	ErrRconTooLong  = errors.New("rcon command too long")
)

// Config is the immutable per-server configuration a Connection is built
// from. Reconnects construct a fresh Connection around the same Config.
type Config struct {
	// Short unique name of the server.
	ID string
	// IRC channel bridged to this server.
	Channel string

	Host     string
	Port     int
	Password string
	// Timeout for the connect handshake read.
	Timeout time.Duration

	// Connect at bot startup and after unexpected drops.
	AutoConnect bool
	// Channel ops may use privileged commands even when not authenticated.
	AllowOps bool
	// Allow clients named "Player" to play. When false they get moved to
	// spectators until they pick a name.
	PlayAsPlayer bool
	// Keep the game paused below this many active players.
	MinPlayers int

	// How the bot presents itself to the admin port.
	BotName    string
	BotVersion string
}

// Update subscriptions requested right after the handshake.
var bootstrapFrequencies = []admin.AdminUpdateFrequency{
	{Type: admin.UpdateClientInfo, Frequency: admin.FrequencyAutomatic},
	{Type: admin.UpdateCompanyInfo, Frequency: admin.FrequencyAutomatic},
	{Type: admin.UpdateCompanyEconomy, Frequency: admin.FrequencyWeekly},
	{Type: admin.UpdateCompanyStats, Frequency: admin.FrequencyWeekly},
	{Type: admin.UpdateChat, Frequency: admin.FrequencyAutomatic},
	{Type: admin.UpdateCmdLogging, Frequency: admin.FrequencyAutomatic},
	{Type: admin.UpdateDate, Frequency: admin.FrequencyDaily},
}

// Connection is one link to a game server. It owns the admin client, the
// session state machine and in-memory caches of game facts, and turns
// decoded packets into dispatcher events.
type Connection struct {
	cfg    Config
	dial   admin.DialFunc
	events *events.EventDispatcher
	log    *logrus.Entry

	registry *Registry

	mu     sync.Mutex
	client admin.Client
	fd     int
	state  admin.ConnectionState

	// Serializes calls into the admin client. The poller and the command
	// handling goroutines both reach the same client; io is acquired
	// after mu when both are needed, never the other way around.
	io sync.Mutex

	// Session caches, rebuilt on every welcome.
	clients     map[uint32]*admin.ClientInfo
	companies   map[uint8]*admin.CompanyInfo
	joinPending map[uint32]bool
	serverInfo  admin.ServerInfo
	date        admin.GameDate

	// Identity of whoever occupies the single rcon slot. Stays on the
	// silent sentinel for the bot's own commands so their output is
	// never relayed.
	rcon string
	// Whether the slot is occupied. Tracked separately from the
	// requester name because silent commands hold the slot too.
	rconBusy bool
	// Last join password set through password rotation.
	password string

	pingToken uint32
	pingSent  map[uint32]time.Time
}

// NewConnection creates a disconnected Connection around the given config.
func NewConnection(
	cfg Config, dial admin.DialFunc, dispatcher *events.EventDispatcher, logger *logrus.Logger,
) *Connection {
	return &Connection{
		cfg:         cfg,
		dial:        dial,
		events:      dispatcher,
		log:         logger.WithFields(logrus.Fields{"server": cfg.ID, "channel": cfg.Channel}),
		fd:          -1,
		state:       admin.StateDisconnected,
		clients:     map[uint32]*admin.ClientInfo{},
		companies:   map[uint8]*admin.CompanyInfo{},
		joinPending: map[uint32]bool{},
		rcon:        RconSilent,
		pingSent:    map[uint32]time.Time{},
	}
}

// ID returns the short server name.
func (c *Connection) ID() string { return c.cfg.ID }

// Channel returns the IRC channel bridged to this server.
func (c *Connection) Channel() string { return c.cfg.Channel }

// Config returns the immutable server configuration.
func (c *Connection) Config() Config { return c.cfg }

// State returns the current lifecycle state.
func (c *Connection) State() admin.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected tells whether the session is fully established.
func (c *Connection) Connected() bool {
	return c.State() == admin.StateConnected
}

// Fd returns the descriptor registered with the poller, -1 when closed.
func (c *Connection) Fd() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fd
}

// Connect dials the server, performs the handshake read and registers the
// descriptor with the poller. The welcome packet arrives later through the
// poller and completes the transition to connected.
func (c *Connection) Connect() error {
	c.mu.Lock()
	if c.state != admin.StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connection is %s", state)
	}
	c.state = admin.StateConnecting
	c.mu.Unlock()

	c.log.Infof("Connecting to %s:%d...", c.cfg.Host, c.cfg.Port)
	client, err := c.dial(c.cfg.Host, c.cfg.Port, c.cfg.Timeout)
	if err != nil {
		c.setState(admin.StateDisconnected)
		return fmt.Errorf("can't connect to %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}

	if err := client.Send(admin.AdminJoin{
		Password: c.cfg.Password,
		Name:     c.cfg.BotName,
		Version:  c.cfg.BotVersion,
	}); err != nil {
		client.Close()
		c.setState(admin.StateDisconnected)
		return fmt.Errorf("handshake send failed: %w", err)
	}

	packet, err := client.ReceiveTimeout(c.cfg.Timeout)
	if err != nil {
		client.Close()
		c.setState(admin.StateDisconnected)
		return fmt.Errorf("handshake read failed: %w", err)
	}
	if _, ok := packet.(admin.ServerProtocol); !ok {
		client.Close()
		c.setState(admin.StateDisconnected)
		return fmt.Errorf("unexpected handshake reply %T", packet)
	}

	c.mu.Lock()
	c.client = client
	c.fd = client.Fd()
	c.state = admin.StateAuthenticating
	c.resetCaches()
	c.mu.Unlock()

	if c.registry != nil {
		c.registry.registerFd(client.Fd(), c)
	}

	// Subscribe to updates and prime the caches.
	c.io.Lock()
	for _, freq := range bootstrapFrequencies {
		client.Send(freq)
	}
	client.Send(admin.AdminPoll{Type: admin.UpdateClientInfo, Extra: admin.PollExtraAll})
	client.Send(admin.AdminPoll{Type: admin.UpdateCompanyInfo, Extra: admin.PollExtraAll})
	client.Send(admin.AdminPoll{Type: admin.UpdateDate})
	c.io.Unlock()

	c.log.Debugf("Handshake done, waiting for welcome.")
	return nil
}

// Disconnect tears the session down. Forced skips the goodbye packet and is
// used after I/O errors; an unexpected forced drop of an established
// session triggers the reconnect policy through the disconnected event.
// Calling Disconnect on a closed connection is a no-op.
func (c *Connection) Disconnect(forced bool) {
	c.mu.Lock()
	client := c.client
	if client == nil {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.client = nil
	fd := c.fd
	c.fd = -1
	if !forced {
		c.state = admin.StateDisconnecting
	}
	c.mu.Unlock()

	// Deregister before closing so the poller never sees a dangling
	// descriptor. Deregistering is idempotent.
	if c.registry != nil {
		c.registry.deregisterFd(fd)
	}
	c.io.Lock()
	if !forced && prev == admin.StateConnected {
		client.Send(admin.AdminQuit{})
	}
	client.Close()
	c.io.Unlock()

	c.mu.Lock()
	c.state = admin.StateDisconnected
	c.rcon = RconSilent
	c.rconBusy = false
	c.mu.Unlock()

	canRetry := forced && prev == admin.StateConnected
	c.log.Infof("Disconnected (was %s, forced: %t).", prev, forced)
	c.events.Trigger(events.EventMessage{
		ServerID:  c.cfg.ID,
		Channel:   c.cfg.Channel,
		EventCode: events.EventDisconnected,
		CanRetry:  canRetry,
	})
}

// SendCommand sends a typed packet to the server. Only allowed once the
// handshake phase has been reached.
func (c *Connection) SendCommand(packet admin.Packet) error {
	c.mu.Lock()
	client := c.client
	state := c.state
	c.mu.Unlock()
	if client == nil || (state != admin.StateConnected && state != admin.StateAuthenticating) {
		return ErrNotConnected
	}
	c.io.Lock()
	defer c.io.Unlock()
	return client.Send(packet)
}

// StartRcon occupies the rcon slot for the requester and sends the
// command. Fails when another command is still in flight or the command
// exceeds the maximum the server accepts. The slot frees itself when the
// server signals completion.
func (c *Connection) StartRcon(requester, command string) error {
	if len(command) >= admin.RconCommandMaxLength {
		return ErrRconTooLong
	}
	c.mu.Lock()
	if c.state != admin.StateConnected || c.client == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.rconBusy {
		c.mu.Unlock()
		return ErrRconBusy
	}
	c.rconBusy = true
	c.rcon = requester
	client := c.client
	c.mu.Unlock()

	c.io.Lock()
	err := client.Send(admin.AdminRcon{Command: command})
	c.io.Unlock()
	if err != nil {
		c.mu.Lock()
		c.rcon = RconSilent
		c.rconBusy = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// SilentRcon runs a console command of the bot's own. It occupies the
// rcon slot like a user command would, but keeps the silent requester so
// the output is never relayed. Rejected while another command is in
// flight.
func (c *Connection) SilentRcon(command string) error {
	return c.StartRcon(RconSilent, command)
}

// RconBusy tells whether an rcon command is in flight.
func (c *Connection) RconBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rconBusy
}

// Ping sends a ping; the latency comes back through the pong event.
func (c *Connection) Ping() error {
	c.mu.Lock()
	c.pingToken++
	token := c.pingToken
	c.pingSent[token] = time.Now()
	c.mu.Unlock()
	return c.SendCommand(admin.AdminPing{Token: token})
}

// ServerInfo returns the cached server metadata.
func (c *Connection) ServerInfo() admin.ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Date returns the cached game date.
func (c *Connection) Date() admin.GameDate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.date
}

// Password returns the last rotated join password.
func (c *Connection) Password() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.password
}

// SetPassword records the join password last sent to the server.
func (c *Connection) SetPassword(password string) {
	c.mu.Lock()
	c.password = password
	c.mu.Unlock()
}

// Clients returns a snapshot of known clients, ordered by id.
func (c *Connection) Clients() []admin.ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]admin.ClientInfo, 0, len(c.clients))
	for _, info := range c.clients {
		list = append(list, *info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Companies returns a snapshot of known companies, ordered by id.
func (c *Connection) Companies() []admin.CompanyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]admin.CompanyInfo, 0, len(c.companies))
	for _, company := range c.companies {
		list = append(list, *company)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// PlayerCount counts clients that actually play in a company.
func (c *Connection) PlayerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, info := range c.clients {
		if !info.Spectating() {
			count++
		}
	}
	return count
}

// pump reads and handles packets until the client has nothing pending.
// Returns false when the peer has closed the session.
func (c *Connection) pump() bool {
	for {
		c.mu.Lock()
		client := c.client
		c.mu.Unlock()
		if client == nil {
			return true
		}
		c.io.Lock()
		packet, err := client.Receive()
		c.io.Unlock()
		if err != nil {
			return false
		}
		if packet == nil {
			return true
		}
		c.handlePacket(packet)
	}
}

// resetCaches drops all session facts. Caller holds the lock.
func (c *Connection) resetCaches() {
	c.clients = map[uint32]*admin.ClientInfo{}
	c.companies = map[uint8]*admin.CompanyInfo{}
	c.joinPending = map[uint32]bool{}
	c.serverInfo = admin.ServerInfo{}
	c.date = 0
}

func (c *Connection) setState(state admin.ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// message builds an event message tagged with this connection's identity.
func (c *Connection) message(code events.EventCode) events.EventMessage {
	return events.EventMessage{
		ServerID:  c.cfg.ID,
		Channel:   c.cfg.Channel,
		EventCode: code,
	}
}

// handlePacket updates the caches and state machine from one inbound
// packet and triggers the matching events. Events are triggered after the
// lock is released so listeners may call back into the connection.
func (c *Connection) handlePacket(packet admin.Packet) {
	var out []events.EventMessage

	c.mu.Lock()
	switch p := packet.(type) {
	case admin.ServerWelcome:
		c.state = admin.StateConnected
		c.resetCaches()
		c.serverInfo = p.Server
		c.date = p.Server.StartDate
		out = append(out, c.message(events.EventConnected))
		out = append(out, c.message(events.EventNewMap))

	case admin.ServerNewGame:
		out = append(out, c.message(events.EventNewGame))

	case admin.ServerShutdown:
		c.state = admin.StateShutdown
		out = append(out, c.message(events.EventShutdown))

	case admin.ServerDate:
		c.date = p.Date

	case admin.ServerClientJoin:
		if info, ok := c.clients[p.ID]; ok {
			message := c.message(events.EventClientJoin)
			snapshot := *info
			message.Client = &snapshot
			out = append(out, message)
		} else {
			// Full info not seen yet, poll for it and announce then.
			c.joinPending[p.ID] = true
			if c.client != nil {
				c.io.Lock()
				c.client.Send(admin.AdminPoll{Type: admin.UpdateClientInfo, Extra: p.ID})
				c.io.Unlock()
			}
		}

	case admin.ServerClientInfo:
		info := p.Client
		c.clients[info.ID] = &info
		if c.joinPending[info.ID] {
			delete(c.joinPending, info.ID)
			message := c.message(events.EventClientJoin)
			snapshot := info
			message.Client = &snapshot
			out = append(out, message)
		}

	case admin.ServerClientUpdate:
		if info, ok := c.clients[p.ID]; ok {
			old := *info
			info.Name = p.Name
			info.PlayAs = p.PlayAs
			message := c.message(events.EventClientUpdate)
			snapshot := *info
			message.Client = &snapshot
			message.OldClient = &old
			out = append(out, message)
		}

	case admin.ServerClientQuit:
		out = c.appendClientQuit(out, p.ID)

	case admin.ServerClientError:
		out = c.appendClientQuit(out, p.ID)

	case admin.ServerCompanyInfo:
		c.storeCompany(p.Company)

	case admin.ServerCompanyUpdate:
		c.storeCompany(p.Company)

	case admin.ServerCompanyRemove:
		delete(c.companies, p.ID)

	case admin.ServerCompanyEconomy:
		if company, ok := c.companies[p.ID]; ok {
			company.Money = p.Money
			company.Loan = p.Loan
			company.Income = p.Income
		}

	case admin.ServerCompanyStats:
		if company, ok := c.companies[p.ID]; ok {
			company.Vehicles = p.Vehicles
			company.Stations = p.Stations
		}

	case admin.ServerChat:
		// Team and company chat stays inside the game.
		if p.Action == admin.ActionChat && p.Destination == admin.DestBroadcast {
			message := c.message(events.EventChat)
			message.ChatID = p.ID
			message.Message = p.Message
			if info, ok := c.clients[p.ID]; ok {
				message.Nick = info.Name
			}
			out = append(out, message)
		}

	case admin.ServerRcon:
		// During a shutdown sequence rcon output is confirmation noise,
		// not user-facing results.
		if c.state == admin.StateConnected {
			message := c.message(events.EventRconResult)
			message.Nick = c.rcon
			message.Message = p.Output
			out = append(out, message)
		}

	case admin.ServerRconEnd:
		requester := c.rcon
		c.rcon = RconSilent
		c.rconBusy = false
		message := c.message(events.EventRconEnd)
		message.Nick = requester
		message.Message = p.Command
		out = append(out, message)

	case admin.ServerConsole:
		message := c.message(events.EventConsole)
		message.Nick = p.Origin
		message.Message = p.Message
		out = append(out, message)

	case admin.ServerCmdLogging:
		message := c.message(events.EventCommandLog)
		message.ChatID = p.ClientID
		if info, ok := c.clients[p.ClientID]; ok {
			message.Nick = info.Name
		}
		message.Message = fmt.Sprintf("command %d (company %d, frame %d)", p.CommandID, p.CompanyID, p.Frame)
		out = append(out, message)

	case admin.ServerPong:
		if start, ok := c.pingSent[p.Token]; ok {
			delete(c.pingSent, p.Token)
			message := c.message(events.EventPong)
			message.Latency = time.Since(start)
			out = append(out, message)
		}

	default:
		c.log.Debugf("Ignoring packet %T.", packet)
	}
	c.mu.Unlock()

	for _, message := range out {
		c.events.Trigger(message)
	}
}

// appendClientQuit removes a client from the cache and appends the quit
// event. Caller holds the lock.
func (c *Connection) appendClientQuit(out []events.EventMessage, id uint32) []events.EventMessage {
	info, ok := c.clients[id]
	if !ok {
		return out
	}
	delete(c.clients, id)
	message := c.message(events.EventClientQuit)
	snapshot := *info
	message.Client = &snapshot
	return append(out, message)
}

// storeCompany merges static company info with cached economy figures.
// Caller holds the lock.
func (c *Connection) storeCompany(company admin.CompanyInfo) {
	if old, ok := c.companies[company.ID]; ok {
		company.Money = old.Money
		company.Loan = old.Loan
		company.Income = old.Income
		company.Vehicles = old.Vehicles
		company.Stations = old.Stations
	}
	c.companies[company.ID] = &company
}
