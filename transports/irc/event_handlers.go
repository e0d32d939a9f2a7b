package ircTransport

// Handlers for IRC events.

import (
	"strings"
	"time"

	"github.com/ropenttd/suds/events"
	"github.com/sorcix/irc"
)

// assignEventHandlers assigns appropriate event handlers.
func (transport *IRCTransport) assignEventHandlers() {
	// Connected to server
	transport.registerIrcEventHandler(irc.RPL_WELCOME, handlerConnect)
	// Ping
	transport.registerIrcEventHandler(irc.PING, handlerPing)
	// Nickname taken
	transport.registerIrcEventHandler(irc.ERR_NICKCOLLISION, handlerNickTaken)
	transport.registerIrcEventHandler(irc.ERR_NICKNAMEINUSE, handlerNickTaken)
	// Invalid nickname
	transport.registerIrcEventHandler(irc.ERR_NONICKNAMEGIVEN, handlerBadNick)
	transport.registerIrcEventHandler(irc.ERR_ERRONEUSNICKNAME, handlerBadNick)
	// Various events that prevent the transport from joining a channel
	transport.registerIrcEventHandler(irc.ERR_CHANNELISFULL, handlerCantJoin)
	transport.registerIrcEventHandler(irc.ERR_BANNEDFROMCHAN, handlerCantJoin)
	transport.registerIrcEventHandler(irc.ERR_INVITEONLYCHAN, handlerCantJoin)
	// Join channel
	transport.registerIrcEventHandler(irc.JOIN, handlerJoin)
	// Part channel
	transport.registerIrcEventHandler(irc.PART, handlerPart)
	// Set mode
	transport.registerIrcEventHandler(irc.MODE, handlerMode)
	// Names list
	transport.registerIrcEventHandler(irc.RPL_NAMREPLY, handlerNames)
	// Set topic
	transport.registerIrcEventHandler(irc.TOPIC, handlerTopic)
	// Kick from channel
	transport.registerIrcEventHandler(irc.KICK, handlerKick)
	// Message on channel
	transport.registerIrcEventHandler(irc.PRIVMSG, handlerMsg)
	// Notice
	transport.registerIrcEventHandler(irc.NOTICE, handlerDummy)
	// Error
	transport.registerIrcEventHandler(irc.ERROR, handlerError)
}

func handlerConnect(transport *IRCTransport, m *irc.Message) {
	transport.log.Infof("I have connected. Joining channels...")
	transport.SendRawMessage(irc.JOIN, transport.channels, "")
	transport.sendEvent(events.EventTransportConnected, false, "", transport.name, "", transport.server)
}

func handlerPing(transport *IRCTransport, m *irc.Message) {
	transport.SendRawMessage(irc.PONG, m.Params, m.Trailing)
}

func handlerNickTaken(transport *IRCTransport, m *irc.Message) {
	transport.name = transport.name + "_"
	transport.log.Warningf(
		"Server at %s said that my nick is already taken. Changing nick to %s", m.Prefix.Name, transport.name)
	transport.SendRawMessage(irc.NICK, []string{transport.name}, "")
}

func handlerCantJoin(transport *IRCTransport, m *irc.Message) {
	transport.log.Warningf("Server at %s said that I can't join %s: %s", m.Prefix.Name, m.Params[1], m.Trailing)
	// Rejoin
	timer := time.NewTimer(transport.rejoinDelay)
	go func() {
		<-timer.C
		transport.log.Debugf("Trying to join %s...", m.Params[1])
		transport.SendRawMessage(irc.JOIN, []string{m.Params[1]}, "")
	}()
}

func handlerBadNick(transport *IRCTransport, m *irc.Message) {
	transport.log.Fatalf("Server at %s said that my nick is invalid.", m.Prefix.Name)
}

func handlerJoin(transport *IRCTransport, m *irc.Message) {
	if transport.NickIsMe(m.Prefix.Name) {
		if transport.kickedFrom[m.Trailing] {
			transport.log.Infof("I have rejoined %s", m.Trailing)
			delete(transport.kickedFrom, m.Trailing)
		} else {
			transport.log.Infof("I have joined %s", m.Trailing)
		}
		transport.onChannel[m.Trailing] = true
	} else {
		transport.log.Infof("%s has joined %s", m.Prefix.Name, m.Trailing)
	}
}

func handlerPart(transport *IRCTransport, m *irc.Message) {
	if transport.NickIsMe(m.Prefix.Name) {
		delete(transport.onChannel, m.Params[0])
	} else {
		transport.setOpped(m.Params[0], m.Prefix.Name, false)
	}
	transport.log.Infof("%s has left %s: %s", m.Prefix.Name, m.Params[0], m.Trailing)
}

func handlerMode(transport *IRCTransport, m *irc.Message) {
	transport.log.Infof("%s has set mode %s on %s", m.Prefix.Name, m.Params[1:], m.Params[0])
	if len(m.Params) < 3 {
		return
	}
	// Track operator grants and revokes.
	channel := m.Params[0]
	give := true
	arg := 2
	for _, mode := range m.Params[1] {
		switch mode {
		case '+':
			give = true
		case '-':
			give = false
		case 'o':
			if arg < len(m.Params) {
				transport.setOpped(channel, m.Params[arg], give)
			}
			arg++
		case 'v', 'h', 'b', 'k', 'l':
			// Modes with an argument we don't care about.
			arg++
		}
	}
}

func handlerNames(transport *IRCTransport, m *irc.Message) {
	// Params are: me, channel visibility, channel. Names are in the trailing.
	if len(m.Params) < 3 {
		return
	}
	channel := m.Params[2]
	for _, name := range strings.Fields(m.Trailing) {
		opped := strings.HasPrefix(name, "@")
		nick := strings.TrimLeft(name, "@%+~&")
		transport.setOpped(channel, nick, opped)
	}
}

func handlerTopic(transport *IRCTransport, m *irc.Message) {
	transport.log.Infof("%s has set topic on %s to: %s", m.Prefix.Name, m.Params[0], m.Trailing)
}

func handlerKick(transport *IRCTransport, m *irc.Message) {
	if transport.NickIsMe(m.Params[1]) {
		transport.log.Infof("I was kicked from %s by %s for: %s", m.Params[0], m.Prefix.Name, m.Trailing)
		transport.kickedFrom[m.Params[0]] = true
		delete(transport.onChannel, m.Params[0])
		// Rejoin
		timer := time.NewTimer(transport.rejoinDelay)
		go func() {
			<-timer.C
			transport.SendRawMessage(irc.JOIN, []string{m.Params[0]}, "")
		}()
	} else {
		transport.log.Infof("%s was kicked from %s by %s for: %s", m.Params[1], m.Params[0], m.Prefix.Name, m.Trailing)
		transport.setOpped(m.Params[0], m.Params[1], false)
	}
}

func handlerError(transport *IRCTransport, m *irc.Message) {
	transport.log.Errorf("Error from server: %s", m.Trailing)
}

func handlerDummy(transport *IRCTransport, m *irc.Message) {
	transport.log.Debugf("MESSAGE: %+v", m)
}

func handlerMsg(transport *IRCTransport, m *irc.Message) {
	msg := m.Trailing
	if msg == "" {
		return
	}
	nick := m.Prefix.Name
	user := m.Prefix.User + "@" + m.Prefix.Host
	channel := m.Params[0]

	if transport.NickIsMe(nick) { // It's the transport talking
		return
	}

	// Special CTCP
	if strings.HasPrefix(msg, "\x01") && strings.HasSuffix(msg, "\x01") {
		msg := msg[1 : len(msg)-1]

		if msg == "VERSION" {
			transport.log.Debugf("Replying to VERSION query from %s...", nick)
			transport.SendNotice(nick, "\x01VERSION suds\x01")
			return
		}

		if msg == "FINGER" {
			transport.log.Debugf("Replying to FINGER query from %s...", nick)
			transport.SendNotice(nick, "\x01FINGER yourself.\x01")
			return
		}

		transport.log.Debugf("%s sent a %s CTCP request. Ignoring.", nick, msg)
		return
	}

	// Private message to the bot?
	if transport.NickIsMe(channel) {
		transport.sendEvent(events.EventPrivateMessage, true, nick, nick, user, msg)
		return
	}

	// Is someone talking to the bot?
	if strings.HasPrefix(msg, transport.name) {
		trimmed := strings.TrimLeft(msg[len(transport.name):], ",:; ")
		if trimmed != "" {
			transport.sendEvent(events.EventChatMessage, true, channel, nick, user, trimmed)
			return
		}
	}

	// Maybe a dot command?
	if strings.HasPrefix(msg, ".") {
		trimmed := strings.TrimPrefix(msg, ".")
		if trimmed != "" {
			transport.sendEvent(events.EventChatMessage, true, channel, nick, user, trimmed)
			return
		}
	}

	// Ordinary channel chatter.
	transport.sendEvent(events.EventChatMessage, false, channel, nick, user, msg)
}
