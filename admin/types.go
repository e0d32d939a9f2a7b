package admin

// Data model carried by admin port packets.

import (
	"fmt"
	"time"
)

// GameDate is an in-game date expressed as days since year zero.
type GameDate uint32

// Time converts the date to a calendar time.
func (d GameDate) Time() time.Time {
	return time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(d))
}

func (d GameDate) String() string {
	t := d.Time()
	return fmt.Sprintf("%d %s %d", t.Day(), t.Month(), t.Year())
}

// ClientInfo describes one client known to the server.
type ClientInfo struct {
	ID       uint32
	Name     string
	Hostname string
	Language uint8
	JoinDate GameDate
	// Company the client plays as, CompanySpectator for spectators.
	PlayAs uint8
}

// Spectating tells whether the client has joined a company.
func (c *ClientInfo) Spectating() bool {
	return c.PlayAs == CompanySpectator
}

// CompanyInfo describes one company and its economy.
type CompanyInfo struct {
	ID        uint8
	Name      string
	Manager   string
	Colour    Colour
	Password  bool
	StartYear uint32
	AI        bool

	Money  int64
	Loan   int64
	Income int64

	Vehicles VehicleCounts
	Stations VehicleCounts
}

// VehicleCounts holds per-type vehicle or station counts.
type VehicleCounts struct {
	Train uint16
	Lorry uint16
	Bus   uint16
	Plane uint16
	Ship  uint16
}

// Total sums all vehicle types.
func (v VehicleCounts) Total() int {
	return int(v.Train) + int(v.Lorry) + int(v.Bus) + int(v.Plane) + int(v.Ship)
}

// ServerInfo holds server metadata received with the welcome packet.
type ServerInfo struct {
	Name      string
	Version   string
	Dedicated bool
	Map       string
	Seed      uint32
	Landscape uint8
	StartDate GameDate
	MapWidth  uint16
	MapHeight uint16
}
