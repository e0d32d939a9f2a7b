package suds

// Listeners bridging game events to IRC and IRC events to the game.

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/events"
	"github.com/ropenttd/suds/servers"
	"github.com/ropenttd/suds/utils"
)

// attachListeners registers all the bot's event listeners.
func (bot *Bot) attachListeners() {
	bot.EventDispatcher.RegisterListener(events.EventTransportConnected, bot.transportConnectedListener)

	bot.EventDispatcher.RegisterListener(events.EventConnected, bot.connectedListener)
	bot.EventDispatcher.RegisterListener(events.EventDisconnected, bot.disconnectedListener)
	bot.EventDispatcher.RegisterListener(events.EventShutdown, bot.shutdownListener)
	bot.EventDispatcher.RegisterListener(events.EventNewGame, bot.newGameListener)
	bot.EventDispatcher.RegisterListener(events.EventNewMap, bot.newMapListener)
	bot.EventDispatcher.RegisterMultiListener(events.EventsClientActivity, bot.clientActivityListener)
	bot.EventDispatcher.RegisterListener(events.EventChat, bot.gameChatListener)
	bot.EventDispatcher.RegisterListener(events.EventRconResult, bot.rconResultListener)
	bot.EventDispatcher.RegisterListener(events.EventConsole, bot.consoleListener)
	bot.EventDispatcher.RegisterListener(events.EventCommandLog, bot.commandLogListener)
	bot.EventDispatcher.RegisterListener(events.EventPong, bot.pongListener)

	bot.EventDispatcher.RegisterMultiListener(events.EventsIRCMessages, bot.ircMessageListener)
}

// transportConnectedListener connects the auto connect servers once the
// bot is on its channels.
func (bot *Bot) transportConnectedListener(message events.EventMessage) {
	bot.autoConnect.Do(func() {
		for _, conn := range bot.Servers.All() {
			if !conn.Config().AutoConnect {
				continue
			}
			conn := conn
			go func() {
				if err := conn.Connect(); err != nil {
					bot.Log.Warningf("Autoconnect to %s failed: %s", conn.ID(), err)
					bot.SendMessage(conn.Channel(), fmt.Sprintf("%s (%s)", bot.Texts.UnableToConnect, err))
				}
			}()
		}
	})
}

// connectedListener announces an established game session.
func (bot *Bot) connectedListener(message events.EventMessage) {
	conn := bot.Servers.ByID(message.ServerID)
	if conn == nil {
		return
	}
	info := conn.ServerInfo()
	bot.SendMessage(message.Channel, fmt.Sprintf("Connected to %s (OpenTTD %s).", info.Name, info.Version))
	bot.scribeGame(message.ServerID, "*** connected to %s (%s)", info.Name, info.Version)
}

// disconnectedListener runs the reconnect policy: an unexpected drop of an
// established session gets exactly one notification and exactly one fresh
// connect attempt.
func (bot *Bot) disconnectedListener(message events.EventMessage) {
	bot.scribeGame(message.ServerID, "*** disconnected")
	if !message.CanRetry {
		return
	}
	conn := bot.Servers.ByID(message.ServerID)
	if conn == nil {
		return
	}
	bot.SendMessage(message.Channel, bot.Texts.ConnectionLost)
	bot.SendMessage(message.Channel, bot.Texts.Reconnecting)
	fresh := bot.Servers.Refresh(conn)
	go func() {
		if err := fresh.Connect(); err != nil {
			bot.Log.Warningf("Reconnect to %s failed: %s", fresh.ID(), err)
			bot.SendMessage(fresh.Channel(), fmt.Sprintf("%s (%s)", bot.Texts.UnableToConnect, err))
		}
	}()
}

// shutdownListener announces a server shutdown.
func (bot *Bot) shutdownListener(message events.EventMessage) {
	bot.SendMessage(message.Channel, "Server is shutting down.")
	bot.scribeGame(message.ServerID, "*** server shutting down")
}

// newGameListener announces a fresh game being generated.
func (bot *Bot) newGameListener(message events.EventMessage) {
	bot.SendMessage(message.Channel, "Server is starting a new game.")
	bot.scribeGame(message.ServerID, "*** new game starting")
}

// newMapListener announces the map a fresh session plays on and applies
// the spawn time policies.
func (bot *Bot) newMapListener(message events.EventMessage) {
	conn := bot.Servers.ByID(message.ServerID)
	if conn == nil {
		return
	}
	info := conn.ServerInfo()
	bot.SendMessage(message.Channel, fmt.Sprintf(
		"Now playing on %s (%dx%d), starting %s.", info.Map, info.MapWidth, info.MapHeight, info.StartDate))
	bot.scribeGame(message.ServerID, "*** new map: %s", info.Map)

	if bot.Config.PasswordRotationMinutes > 0 {
		bot.rotatePassword(conn)
	}
	bot.managePause(conn)
}

// clientActivityListener announces joins, renames and quits, and applies
// the per-client policies.
func (bot *Bot) clientActivityListener(message events.EventMessage) {
	conn := bot.Servers.ByID(message.ServerID)
	if conn == nil || message.Client == nil {
		return
	}
	client := message.Client

	switch message.EventCode {
	case events.EventClientJoin:
		bot.SendMessage(message.Channel, fmt.Sprintf("*** %s has joined the game.", client.Name))
		bot.scribeGame(message.ServerID, "*** %s joined", client.Name)
		bot.welcomeClient(conn, client)
		if !conn.Config().PlayAsPlayer && client.Name == "Player" {
			bot.moveToSpectators(conn, client)
		}

	case events.EventClientUpdate:
		old := message.OldClient
		if old != nil && old.Name != client.Name {
			bot.SendMessage(message.Channel, fmt.Sprintf("*** %s is now known as %s.", old.Name, client.Name))
			bot.scribeGame(message.ServerID, "*** %s is now %s", old.Name, client.Name)
		}
		if !conn.Config().PlayAsPlayer && client.Name == "Player" && !client.Spectating() {
			bot.moveToSpectators(conn, client)
		}

	case events.EventClientQuit:
		bot.SendMessage(message.Channel, fmt.Sprintf("*** %s has left the game.", client.Name))
		bot.scribeGame(message.ServerID, "*** %s left", client.Name)
	}

	bot.managePause(conn)
}

// gameChatListener relays public game chat to the channel.
func (bot *Bot) gameChatListener(message events.EventMessage) {
	nick := message.Nick
	if nick == "" {
		nick = fmt.Sprintf("client #%d", message.ChatID)
	}
	bot.SendMessage(message.Channel, fmt.Sprintf("<%s> %s", nick, message.Message))
	bot.scribeGame(message.ServerID, "<%s> %s", nick, message.Message)
	go bot.handleGameURLs(message)
}

// rconResultListener hands rcon output to whoever asked for it. Output of
// the bot's own silent commands goes nowhere.
func (bot *Bot) rconResultListener(message events.EventMessage) {
	if message.Nick == servers.RconSilent {
		return
	}
	bot.SendMessage(message.Channel, message.Message)
}

// consoleListener keeps server console output in the game log.
func (bot *Bot) consoleListener(message events.EventMessage) {
	bot.scribeGame(message.ServerID, "[%s] %s", message.Nick, message.Message)
}

// commandLogListener records game commands for auditing.
func (bot *Bot) commandLogListener(message events.EventMessage) {
	if _, err := bot.Db.Exec(`INSERT INTO command_log(server, client_id, nick, entry) VALUES(?, ?, ?, ?)`,
		message.ServerID, message.ChatID, message.Nick, message.Message); err != nil {
		bot.Log.Warningf("Can't log game command: %s", err)
	}
}

// pongListener reports the measured round trip time.
func (bot *Bot) pongListener(message events.EventMessage) {
	bot.SendMessage(message.Channel, fmt.Sprintf("Pong, %s.", message.Latency.Round(time.Millisecond)))
}

// ircMessageListener handles chat on the bot's channels: commands go to
// the command handler, the rest gets relayed into the game.
func (bot *Bot) ircMessageListener(message events.EventMessage) {
	if message.AtBot {
		bot.handleBotCommand(&message)
		return
	}
	if bot.transport.NickIsMe(message.Nick) {
		return
	}
	conn := bot.Servers.ByChannel(message.Channel)
	if conn == nil || !conn.Connected() {
		return
	}
	if err := conn.SendCommand(admin.AdminChat{
		Action:      admin.ActionChat,
		Destination: admin.DestBroadcast,
		Message:     fmt.Sprintf("<%s> %s", message.Nick, message.Message),
	}); err != nil {
		bot.Log.Warningf("Can't relay chat to %s: %s", conn.ID(), err)
	}
	bot.scribeGame(conn.ID(), "(irc) <%s> %s", message.Nick, message.Message)
}

// welcomeClient greets a fresh client with the welcome template.
func (bot *Bot) welcomeClient(conn *servers.Connection, client *admin.ClientInfo) {
	text := utils.Format(bot.Texts.Welcome, map[string]string{
		"nick":    client.Name,
		"server":  conn.ServerInfo().Name,
		"channel": conn.Channel(),
	})
	if text == "" {
		return
	}
	conn.SendCommand(admin.AdminChat{
		Action:      admin.ActionChat,
		Destination: admin.DestClient,
		ID:          client.ID,
		Message:     text,
	})
}

// moveToSpectators parks a default named client with the spectators until
// they pick a name.
func (bot *Bot) moveToSpectators(conn *servers.Connection, client *admin.ClientInfo) {
	bot.Log.Infof("Moving %s (#%d) to spectators.", client.Name, client.ID)
	if err := conn.SilentRcon(fmt.Sprintf("move %d %d", client.ID, admin.CompanySpectator)); err != nil {
		bot.Log.Warningf("Can't move %s to spectators: %s", client.Name, err)
		return
	}
	conn.SendCommand(admin.AdminChat{
		Action:      admin.ActionChat,
		Destination: admin.DestClient,
		ID:          client.ID,
		Message:     "Please change your name before playing.",
	})
}

// managePause keeps the game paused while too few players are on.
func (bot *Bot) managePause(conn *servers.Connection) {
	min := conn.Config().MinPlayers
	if min <= 0 || !conn.Connected() {
		return
	}
	command := "unpause"
	if conn.PlayerCount() < min {
		command = "pause"
	}
	// A busy slot just means the next client event retries.
	if err := conn.SilentRcon(command); err != nil && err != servers.ErrRconBusy {
		bot.Log.Warningf("Can't %s %s: %s", command, conn.ID(), err)
	}
}

// rotatePassword picks a new join password and announces it.
func (bot *Bot) rotatePassword(conn *servers.Connection) {
	if len(bot.Texts.PasswordWords) == 0 {
		return
	}
	word := bot.Texts.PasswordWords[rand.Intn(len(bot.Texts.PasswordWords))]
	if err := conn.SilentRcon(fmt.Sprintf("server_pw %s", word)); err != nil {
		bot.Log.Warningf("Can't rotate password on %s: %s", conn.ID(), err)
		return
	}
	conn.SetPassword(word)
	bot.SendMessage(conn.Channel(), fmt.Sprintf("Join password is now: %s", word))
}
