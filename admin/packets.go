package admin

// Typed admin port packets. Admin* packets travel to the server, Server*
// packets come back. The concrete Client implementation maps these onto
// the wire format.

import "time"

// Packet is implemented by every admin port packet type.
type Packet interface {
	packet()
}

// AdminJoin authenticates the session after connecting.
type AdminJoin struct {
	Password string
	Name     string
	Version  string
}

// AdminQuit announces a graceful disconnect.
type AdminQuit struct{}

// AdminUpdateFrequency subscribes to a class of server updates.
type AdminUpdateFrequency struct {
	Type      UpdateType
	Frequency UpdateFrequency
}

// AdminPoll requests a one-shot update. Extra selects the entity id,
// PollExtraAll selects all of them.
type AdminPoll struct {
	Type  UpdateType
	Extra uint32
}

// AdminChat sends a chat message into the game.
type AdminChat struct {
	Action      Action
	Destination DestType
	ID          uint32
	Message     string
}

// AdminRcon runs a remote console command.
type AdminRcon struct {
	Command string
}

// AdminPing measures round trip time; the token comes back in ServerPong.
type AdminPing struct {
	Token uint32
}

// ServerProtocol is the handshake response.
type ServerProtocol struct {
	Version uint8
}

// ServerWelcome carries server metadata; sent after authentication and on
// every new map.
type ServerWelcome struct {
	Server ServerInfo
}

// ServerNewGame announces that a new game is starting.
type ServerNewGame struct{}

// ServerShutdown announces that the server is shutting down.
type ServerShutdown struct{}

// ServerDate is a game date update.
type ServerDate struct {
	Date GameDate
}

// ServerClientJoin announces that a client joined the game.
type ServerClientJoin struct {
	ID uint32
}

// ServerClientInfo carries full info on one client.
type ServerClientInfo struct {
	Client ClientInfo
}

// ServerClientUpdate reports a changed client name or company.
type ServerClientUpdate struct {
	ID     uint32
	Name   string
	PlayAs uint8
}

// ServerClientQuit announces that a client left the game.
type ServerClientQuit struct {
	ID uint32
}

// ServerClientError announces that a client was dropped.
type ServerClientError struct {
	ID    uint32
	Error uint8
}

// ServerCompanyInfo carries static info on one company.
type ServerCompanyInfo struct {
	Company CompanyInfo
}

// ServerCompanyUpdate reports changed company details.
type ServerCompanyUpdate struct {
	Company CompanyInfo
}

// ServerCompanyRemove announces a closed company.
type ServerCompanyRemove struct {
	ID     uint8
	Reason uint8
}

// ServerCompanyEconomy is a periodic economy update.
type ServerCompanyEconomy struct {
	ID     uint8
	Money  int64
	Loan   int64
	Income int64
}

// ServerCompanyStats is a periodic vehicle and station count update.
type ServerCompanyStats struct {
	ID       uint8
	Vehicles VehicleCounts
	Stations VehicleCounts
}

// ServerChat is a chat message from the game.
type ServerChat struct {
	Action      Action
	Destination DestType
	ID          uint32
	Message     string
	Money       int64
}

// ServerRcon is one line of rcon command output.
type ServerRcon struct {
	Colour uint16
	Output string
}

// ServerRconEnd signals that an rcon command finished.
type ServerRconEnd struct {
	Command string
}

// ServerConsole is a line of server console output.
type ServerConsole struct {
	Origin  string
	Message string
}

// ServerCmdLogging reports a game command executed by a client.
type ServerCmdLogging struct {
	ClientID  uint32
	CompanyID uint8
	CommandID uint16
	Frame     uint32
}

// ServerPong answers an AdminPing.
type ServerPong struct {
	Token     uint32
	Timestamp time.Time
}

func (AdminJoin) packet()            {}
func (AdminQuit) packet()            {}
func (AdminUpdateFrequency) packet() {}
func (AdminPoll) packet()            {}
func (AdminChat) packet()            {}
func (AdminRcon) packet()            {}
func (AdminPing) packet()            {}

func (ServerProtocol) packet()       {}
func (ServerWelcome) packet()        {}
func (ServerNewGame) packet()        {}
func (ServerShutdown) packet()       {}
func (ServerDate) packet()           {}
func (ServerClientJoin) packet()     {}
func (ServerClientInfo) packet()     {}
func (ServerClientUpdate) packet()   {}
func (ServerClientQuit) packet()     {}
func (ServerClientError) packet()    {}
func (ServerCompanyInfo) packet()    {}
func (ServerCompanyUpdate) packet()  {}
func (ServerCompanyRemove) packet()  {}
func (ServerCompanyEconomy) packet() {}
func (ServerCompanyStats) packet()   {}
func (ServerChat) packet()           {}
func (ServerRcon) packet()           {}
func (ServerRconEnd) packet()        {}
func (ServerConsole) packet()        {}
func (ServerCmdLogging) packet()     {}
func (ServerPong) packet()           {}
