package ircTransport

// IRC transport for suds.

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/ropenttd/suds/events"
	"github.com/sirupsen/logrus"
	"github.com/sorcix/irc"
)

const MsgLengthLimit = 440 // IRC message length limit.

// Interface for IRC event handler function.
type ircEvenHandlerFunc func(transport *IRCTransport, m *irc.Message)

type IRCTransport struct {
	// Settings.

	// Connection parameters
	server   string
	name     string
	user     string
	password string
	// channels to join.
	channels []string
	// Delay of next messages after flood semaphore hits.
	antiFloodDelay int
	// Delay between rejoin attempts.
	rejoinDelay time.Duration

	// Provided by the bot.

	// Logger.
	log *logrus.Logger
	// Event dispatcher.
	eventDispatcher *events.EventDispatcher

	// Operational.

	// IRC messages stream.
	messages chan *irc.Message
	// Network connection.
	connection net.Conn
	// IO.
	decoder *irc.Decoder
	encoder *irc.Encoder
	// TLS config.
	tlsConfig *tls.Config
	// Anti flood buffered semaphore
	floodSemaphore chan int
	// Channels bot was kicked from.
	kickedFrom map[string]bool
	// Channels the bot is on.
	onChannel map[string]bool
	// Channel operators, per channel.
	ops map[string]map[string]bool
	// Registered event handlers.
	ircEventHandlers map[string][]ircEvenHandlerFunc
}

// New creates a new transport instance. Channels to join come from the
// per-server bridge configuration, not from the transport's own section.
func New(
	botName string, channels []string, fullConfig *toml.Tree, logger *logrus.Logger,
	eventDispatcher *events.EventDispatcher,
) *IRCTransport {

	transport := &IRCTransport{
		messages: make(chan *irc.Message),

		antiFloodDelay: int(fullConfig.GetDefault("bot.anti_flood_delay", int64(5)).(int64)),
		rejoinDelay:    15 * time.Second,
		name:           botName,
		user:           fullConfig.GetDefault("irc.user", "suds").(string),
		password:       fullConfig.GetDefault("irc.password", "").(string),
		server:         fullConfig.GetDefault("irc.server", "localhost:6667").(string),
		channels:       channels,

		floodSemaphore:   make(chan int, 5),
		kickedFrom:       map[string]bool{},
		onChannel:        map[string]bool{},
		ops:              map[string]map[string]bool{},
		ircEventHandlers: make(map[string][]ircEvenHandlerFunc),

		log:             logger,
		eventDispatcher: eventDispatcher,
	}

	// Prepare TLS config if needed.
	if fullConfig.GetDefault("irc.use_tls", false).(bool) {
		transport.tlsConfig = &tls.Config{}
		if fullConfig.GetDefault("irc.tls_skip_verify", false).(bool) {
			transport.tlsConfig.InsecureSkipVerify = true
		}
	}

	// Attach event handlers.
	transport.assignEventHandlers()

	return transport
}

// Name returns the transport name.
func (transport *IRCTransport) Name() string {
	return "irc"
}

// registerIrcEventHandler will register a new handler for the given IRC event.
func (transport *IRCTransport) registerIrcEventHandler(event string, handler ircEvenHandlerFunc) {
	transport.ircEventHandlers[event] = append(transport.ircEventHandlers[event], handler)
}

// SendRawMessage sends raw command to the server.
func (transport *IRCTransport) SendRawMessage(command string, params []string, trailing string) {
	if err := transport.encoder.Encode(&irc.Message{
		Command:  command,
		Params:   params,
		Trailing: trailing,
	}); err != nil {
		transport.log.Errorf("Can't send message %s: %s", command, err)
	}
}

// SendMessage sends a message to the channel.
func (transport *IRCTransport) SendMessage(channel, message string) {
	transport.sendFloodProtected(irc.PRIVMSG, channel, message)
}

// SendNotice sends a notice to the channel.
func (transport *IRCTransport) SendNotice(channel, message string) {
	transport.sendFloodProtected(irc.NOTICE, channel, message)
}

// SendPrivMessage sends a message to the user.
func (transport *IRCTransport) SendPrivMessage(user, message string) {
	transport.SendMessage(user, message)
}

// SendMassNotice sends a notice to all the channels transport is on.
func (transport *IRCTransport) SendMassNotice(message string) {
	for _, channel := range transport.getChannelsOn() {
		transport.sendFloodProtected(irc.NOTICE, channel, message)
	}
}

// sendFloodProtected is a flood protected message sender.
func (transport *IRCTransport) sendFloodProtected(mType, channel, message string) {
	messages := strings.Split(message, "\n")
	for i := range messages {
		// IRC message size limit.
		if len(messages[i]) > MsgLengthLimit {
			for n := 0; n < len(messages[i]); n += MsgLengthLimit {
				upperLimit := n + MsgLengthLimit
				if upperLimit > len(messages[i]) {
					upperLimit = len(messages[i])
				}
				transport.floodSemaphore <- 1
				transport.SendRawMessage(mType, []string{channel}, messages[i][n:upperLimit])
			}
			return
		}
		transport.floodSemaphore <- 1
		transport.SendRawMessage(mType, []string{channel}, messages[i])
	}
}

// getChannelsOn will return a list of channels the transport is currently on.
func (transport *IRCTransport) getChannelsOn() []string {
	channelsOn := []string{}
	for channel, on := range transport.onChannel {
		if on {
			channelsOn = append(channelsOn, channel)
		}
	}
	return channelsOn
}

// isOnChannel will check if transport is on the given channel.
func (transport *IRCTransport) isOnChannel(channel string) bool {
	return transport.onChannel[channel]
}

// NickIsMe checks if the sender is the transport.
func (transport *IRCTransport) NickIsMe(nick string) bool {
	return nick == transport.name
}

// IsOpped checks whether the nick has ops on the channel.
func (transport *IRCTransport) IsOpped(channel, nick string) bool {
	return transport.ops[strings.ToLower(channel)][nick]
}

// setOpped records a change of operator status.
func (transport *IRCTransport) setOpped(channel, nick string, opped bool) {
	channel = strings.ToLower(channel)
	if transport.ops[channel] == nil {
		transport.ops[channel] = map[string]bool{}
	}
	if opped {
		transport.ops[channel][nick] = true
	} else {
		delete(transport.ops[channel], nick)
	}
}

// sendEvent triggers an event for the bot.
func (transport *IRCTransport) sendEvent(
	eventCode events.EventCode, atBot bool, channel, nick, fullName string, message ...interface{},
) {
	transport.eventDispatcher.Trigger(events.EventMessage{
		Channel:   channel,
		EventCode: eventCode,
		Nick:      nick,
		UserId:    fullName,
		Message:   fmt.Sprint(message...),
		AtBot:     atBot,
	})
}
