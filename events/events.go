package events

// Events and dispatcher.

import (
	"time"

	"github.com/ropenttd/suds/admin"
	"github.com/sirupsen/logrus"
)

type EventCode int

// Single event codes.
const (
	// Admin link authenticated and registered.
	EventConnected EventCode = iota
	// Admin link dropped.
	EventDisconnected
	// Game server announced shutdown.
	EventShutdown
	// A new game is starting.
	EventNewGame
	// Welcome received, map info available.
	EventNewMap
	// A client joined the game.
	EventClientJoin
	// A client changed name or company.
	EventClientUpdate
	// A client left the game.
	EventClientQuit
	// Chat inside the game.
	EventChat
	// One line of rcon output.
	EventRconResult
	// An rcon command finished.
	EventRconEnd
	// Server console output.
	EventConsole
	// A game command was logged.
	EventCommandLog
	// Ping answer from the server.
	EventPong

	// Normal chat message on IRC.
	EventChatMessage
	// Private message received on IRC.
	EventPrivateMessage
	// IRC transport connected.
	EventTransportConnected
)

func (code EventCode) String() string {
	names := []string{
		"connected", "disconnected", "shutdown", "new game", "new map",
		"client join", "client update", "client quit", "chat",
		"rcon result", "rcon end", "console", "command log", "pong",
		"chat message", "private message", "transport connected",
	}
	if int(code) >= 0 && int(code) < len(names) {
		return names[code]
	}
	return "unknown"
}

// Event code groups, for convenience.
var EventsClientActivity = []EventCode{EventClientJoin, EventClientUpdate, EventClientQuit}
var EventsIRCMessages = []EventCode{EventChatMessage, EventPrivateMessage}

// Message for the events channel.
type EventMessage struct {
	// Short id of the game server the event belongs to, empty for IRC events.
	ServerID string
	// IRC channel associated with the source.
	Channel string
	// Event code.
	EventCode EventCode
	// Sender information.
	Nick, UserId string
	// Text payload: chat line, rcon output, console line.
	Message string
	// Whether a dropped link may be re-established automatically.
	CanRetry bool
	// Was the message directed at the bot? If yes, bot will check for commands.
	// Message directed at the bot should be stripped of the prefixes like dot or bot's name.
	AtBot bool

	// Typed payloads, filled per event kind.
	Client    *admin.ClientInfo
	OldClient *admin.ClientInfo
	Company   *admin.CompanyInfo
	ChatID    uint32
	Latency   time.Duration
}

// IsPrivate will tell if an event was triggered by a private chat message.
func (message *EventMessage) IsPrivate() bool {
	return message.EventCode == EventPrivateMessage
}

// Type for a valid event listener function.
type EventListenerFunc func(message EventMessage)

// Event dispatcher. Listeners run synchronously, in registration order, on
// the goroutine that triggered the event, so events from one source are
// always observed in decode order.
type EventDispatcher struct {
	listeners map[EventCode][]EventListenerFunc
	log       *logrus.Logger
	// List of people whose events will be ignored, in the form of transport~nick.
	blackList []string
}

// RegisterMultiListener will attach a listener to multiple events.
func (dispatcher *EventDispatcher) RegisterMultiListener(eventCodes []EventCode, listener EventListenerFunc) {
	for _, eventCode := range eventCodes {
		dispatcher.RegisterListener(eventCode, listener)
	}
}

// RegisterListener will register a listener to an event. Registration has
// to happen before the event source starts; registering mid-dispatch is
// not supported.
func (dispatcher *EventDispatcher) RegisterListener(eventCode EventCode, listener EventListenerFunc) {
	dispatcher.listeners[eventCode] = append(dispatcher.listeners[eventCode], listener)
	dispatcher.log.Debugf("Added listener for event \"%s\": %v", eventCode, listener)
}

// Trigger will trigger an event. A panicking listener is logged and the
// remaining listeners still run.
func (dispatcher *EventDispatcher) Trigger(eventMessage EventMessage) {
	if dispatcher.isIgnored(eventMessage) {
		dispatcher.log.Infof(
			"Ignoring event %s from %s (%s)", eventMessage.EventCode, eventMessage.Nick, eventMessage.UserId)
		return
	}
	for _, listener := range dispatcher.listeners[eventMessage.EventCode] {
		dispatcher.dispatch(listener, eventMessage)
	}
}

// dispatch runs one listener inside a recover boundary.
func (dispatcher *EventDispatcher) dispatch(listener EventListenerFunc, eventMessage EventMessage) {
	defer func() {
		if r := recover(); r != nil {
			dispatcher.log.Errorf("FATAL ERROR in event handler for %v: %v", eventMessage.EventCode, r)
		}
	}()
	listener(eventMessage)
}

// isIgnored will check whether the message comes from an ignored person.
func (dispatcher *EventDispatcher) isIgnored(eventMessage EventMessage) bool {
	if eventMessage.UserId == "" {
		return false
	}
	for _, person := range dispatcher.blackList {
		if person == eventMessage.UserId {
			return true
		}
	}
	return false
}

// SetBlackList sets the ignore list.
func (dispatcher *EventDispatcher) SetBlackList(blackList []string) {
	dispatcher.blackList = blackList
}

// New will create a new event dispatcher instance.
func New(logger *logrus.Logger) *EventDispatcher {
	dispatcher := &EventDispatcher{
		listeners: map[EventCode][]EventListenerFunc{},
		log:       logger,
	}
	return dispatcher
}
