package admin

// Protocol enums and constants.

// ConnectionState tracks the lifecycle of one admin port link.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateDisconnecting
	StateShutdown
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateShutdown:
		return "shutdown"
	}
	return "unknown"
}

// UpdateType selects which class of server updates a frequency applies to.
type UpdateType uint16

const (
	UpdateDate UpdateType = iota
	UpdateClientInfo
	UpdateCompanyInfo
	UpdateCompanyEconomy
	UpdateCompanyStats
	UpdateChat
	UpdateConsole
	UpdateCmdNames
	UpdateCmdLogging
	UpdateGamescript
)

// UpdateFrequency says how often the server should push a given update.
type UpdateFrequency uint16

const (
	FrequencyPoll      UpdateFrequency = 0x01
	FrequencyDaily     UpdateFrequency = 0x02
	FrequencyWeekly    UpdateFrequency = 0x04
	FrequencyMonthly   UpdateFrequency = 0x08
	FrequencyQuarterly UpdateFrequency = 0x10
	FrequencyAnually   UpdateFrequency = 0x20
	FrequencyAutomatic UpdateFrequency = 0x40
)

// PollExtraAll polls every entity of the requested update type.
const PollExtraAll uint32 = 0xFFFFFFFF

// Action is the chat action type.
type Action uint8

const (
	ActionJoin Action = iota
	ActionLeave
	ActionServerMessage
	ActionChat
	ActionChatCompany
	ActionChatClient
	ActionGiveMoney
)

// DestType is the destination class of a chat message.
type DestType uint8

const (
	DestBroadcast DestType = iota
	DestTeam
	DestClient
)

const (
	// RconCommandMaxLength is the longest rcon command the server accepts.
	RconCommandMaxLength = 500
	// CompanySpectator is the company id of clients who only watch.
	CompanySpectator uint8 = 255
	// ClientServer is the client id the server itself speaks as.
	ClientServer uint32 = 1
)

// Colour is a company colour.
type Colour uint8

var colourNames = []string{
	"Dark Blue", "Pale Green", "Pink", "Yellow", "Red", "Light Blue",
	"Green", "Dark Green", "Blue", "Cream", "Mauve", "Purple", "Orange",
	"Brown", "Grey", "White",
}

// Name returns the in-game name of the colour.
func (c Colour) Name() string {
	if int(c) < len(colourNames) {
		return colourNames[c]
	}
	return "Unknown"
}
