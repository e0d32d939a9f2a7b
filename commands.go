package suds

// Handlers for bot commands.

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/events"
	"github.com/ropenttd/suds/servers"
	"github.com/sirupsen/logrus"
)

// initBotCommands registers bot commands.
func (bot *Bot) initBotCommands() {
	// Help.
	bot.RegisterCommand(&BotCommand{
		[]string{"help", "h"},
		false, false, false,
		"[pub]", "Send help text to you privately. Adding [pub] will print help on the same channel you asked.",
		commandHelp})
	// Auth.
	bot.RegisterCommand(&BotCommand{
		[]string{"auth"},
		true, false, false,
		"<username> <password>", "Authenticate with the bot.",
		commandAuth})
	// Useradd.
	bot.RegisterCommand(&BotCommand{
		[]string{"useradd"},
		true, false, false,
		"<username> <password>", "Create user account.",
		commandUserAdd})
	// Ignore.
	bot.RegisterCommand(&BotCommand{
		[]string{"ignore"},
		false, false, true,
		"add <userName> | remove <userName>", "Manages ignore list.",
		commandIgnore})
	// Connect.
	bot.RegisterCommand(&BotCommand{
		[]string{"apconnect", "connect"},
		false, true, false,
		"[server]", "Connect to the game server.",
		commandConnect})
	// Disconnect.
	bot.RegisterCommand(&BotCommand{
		[]string{"apdisconnect", "disconnect"},
		false, true, false,
		"[server]", "Disconnect from the game server.",
		commandDisconnect})
	// Rcon.
	bot.RegisterCommand(&BotCommand{
		[]string{"rcon"},
		false, true, false,
		"<command>", "Send a console command to the game server.",
		commandRcon})
	// Pause.
	bot.RegisterCommand(&BotCommand{
		[]string{"pause"},
		false, true, false,
		"[server]", "Pause the game.",
		commandPause})
	// Unpause.
	bot.RegisterCommand(&BotCommand{
		[]string{"unpause"},
		false, true, false,
		"[server]", "Unpause the game.",
		commandUnpause})
	// Password.
	bot.RegisterCommand(&BotCommand{
		[]string{"password"},
		false, false, false,
		"[rotate]", "Show the current join password. 'rotate' picks a new one.",
		commandPassword})
	// Date.
	bot.RegisterCommand(&BotCommand{
		[]string{"date"},
		false, false, false,
		"[server]", "Show the in-game date.",
		commandDate})
	// Clients.
	bot.RegisterCommand(&BotCommand{
		[]string{"clients"},
		false, false, false,
		"[server]", "List the clients connected to the game.",
		commandClients})
	// Companies.
	bot.RegisterCommand(&BotCommand{
		[]string{"companies"},
		false, false, false,
		"[server]", "List the companies in the game.",
		commandCompanies})
	// Download.
	bot.RegisterCommand(&BotCommand{
		[]string{"download", "dl"},
		false, false, false,
		"[lin|lin64|osx|win32|win64|win9x|source]", "Show a download link matching the server version.",
		commandDownload})
	// Ping.
	bot.RegisterCommand(&BotCommand{
		[]string{"ping"},
		false, false, false,
		"[server]", "Measure the round trip time to the game server.",
		commandPing})

	bot.commandsHideParams["auth"] = true
	bot.commandsHideParams["useradd"] = true
}

// handleBotCommand handles commands directed at the bot.
func (bot *Bot) handleBotCommand(sourceEvent *events.EventMessage) {
	// Catch errors.
	defer func() {
		if Debug {
			return
		} // When in debug mode fail on all errors.
		if r := recover(); r != nil {
			bot.Log.Errorf("FATAL ERROR in bot command: %s", r)
		}
	}()

	owner := bot.UserIsOwner(sourceEvent.UserId)
	admin := bot.UserIsAdmin(sourceEvent.UserId)

	params := strings.Split(sourceEvent.Message, " ")
	command := params[0]
	params = params[1:]

	paramsDisplay := fmt.Sprintf("%+v", params)
	if bot.commandsHideParams[command] {
		paramsDisplay = "<hidden>"
	}
	bot.Log.WithFields(
		logrus.Fields{"channel": sourceEvent.Channel, "cmd": command, "params": paramsDisplay},
	).Infof("Received command from %s.", sourceEvent.Nick)

	if !sourceEvent.IsPrivate() && !owner && !admin { // Command limits apply.
		limited, warn := bot.exceededCommandLimit(command, sourceEvent.Nick, sourceEvent.Channel)
		if limited {
			if warn {
				bot.SendMessage(sourceEvent.Channel, fmt.Sprintf("%s, %s", sourceEvent.Nick, bot.Texts.CommandLimit))
			}
			return
		}
	}

	if cmd, exists := bot.commands[command]; exists {
		// Check if command needs to be run through private message.
		if cmd.Private && !sourceEvent.IsPrivate() {
			bot.SendMessage(sourceEvent.Channel, fmt.Sprintf("%s, %s", sourceEvent.Nick, bot.Texts.NeedsPriv))
			return
		}
		// Check if command needs an admin.
		if cmd.Admin && !admin && !owner {
			bot.SendMessage(sourceEvent.Channel, fmt.Sprintf("%s, %s", sourceEvent.Nick, bot.Texts.NeedsAdmin))
			return
		}
		// Check if command needs game server privileges.
		if cmd.Privileged && !bot.checkPermission(sourceEvent) {
			bot.SendMessage(sourceEvent.Channel, fmt.Sprintf("%s, %s", sourceEvent.Nick, bot.Texts.NeedsPrivileges))
			return
		}
		// Execute the command.
		cmd.CommandFunc(bot, sourceEvent, params)
	} else { // Unknown command.
		if rand.Int()%10 > 3 {
			bot.SendMessage(
				sourceEvent.Channel, bot.Texts.WrongCommand[rand.Intn(len(bot.Texts.WrongCommand))])
		}
	}
}

// exceededCommandLimit counts one use and tells whether the sender went
// over the per-command limit. The first hit on a channel asks for a
// warning; the ticker goroutine clears the counters, so access is locked.
func (bot *Bot) exceededCommandLimit(command, nick, channel string) (limited, warn bool) {
	bot.commandLimitMu.Lock()
	defer bot.commandLimitMu.Unlock()
	if bot.commandUseLimit[command+nick] >= bot.Config.CommandsPer5 { // Per command+person.
		if !bot.commandWarn[channel] { // Warning was not yet sent.
			bot.commandWarn[channel] = true
			return true, true
		}
		return true, false
	}
	bot.commandUseLimit[command+nick] += 1
	return false, false
}

// clearCommandLimits resets the use counters and warnings.
func (bot *Bot) clearCommandLimits() {
	bot.commandLimitMu.Lock()
	defer bot.commandLimitMu.Unlock()
	for k := range bot.commandUseLimit {
		delete(bot.commandUseLimit, k)
	}
	for k := range bot.commandWarn {
		delete(bot.commandWarn, k)
	}
}

// checkPermission tells whether the sender may use privileged game commands.
// Trusted accounts always may. Channel ops may when the bridged server
// allows it.
func (bot *Bot) checkPermission(sourceEvent *events.EventMessage) bool {
	if bot.UserIsAuthenticated(sourceEvent.UserId) {
		return true
	}
	conn := bot.Servers.ByChannel(sourceEvent.Channel)
	if conn != nil && conn.Config().AllowOps {
		return bot.transport.IsOpped(sourceEvent.Channel, sourceEvent.Nick)
	}
	return false
}

// connectionFor resolves the game connection a command targets. An explicit
// server id as the first parameter wins, then the channel the command was
// issued on. Returns the remaining parameters.
func (bot *Bot) connectionFor(sourceEvent *events.EventMessage, params []string) (*servers.Connection, []string) {
	if len(params) > 0 {
		if conn := bot.Servers.Find("", params[0]); conn != nil {
			return conn, params[1:]
		}
	}
	return bot.Servers.ByChannel(sourceEvent.Channel), params
}

// commandHelp will print help for all the commands.
func commandHelp(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	forcePriv := false
	if len(params) == 0 || params[0] != "pub" { // By default help only gets sent on priv.
		forcePriv = true
	}

	admin := bot.UserIsOwnerOrAdmin(sourceEvent.UserId)
	// Build a list of all command aliases.
	helpCommandKeys := map[string][]string{}
	helpCommands := map[string]*BotCommand{}
	for key, cmd := range bot.commands {
		pointerStr := fmt.Sprintf("%p", cmd)
		helpCommandKeys[pointerStr] = append(helpCommandKeys[pointerStr], key)
		helpCommands[pointerStr] = cmd
	}
	// Print help.
	for pointerStr, cmd := range helpCommands {
		if cmd.Admin && !admin {
			continue
		}
		commands := strings.Join(helpCommandKeys[pointerStr], ", ")
		options := ""
		if cmd.Private {
			options = " \x0300(private only)\x03"
		}
		if cmd.Privileged {
			options += " \x0300(trusted users)\x03"
		}
		result := fmt.Sprintf(
			"\x0308%s\x03 \x0310%s\x03 - %s%s", commands, cmd.HelpParams, cmd.HelpDescription, options)
		if forcePriv {
			bot.SendPrivateMessage(sourceEvent.Nick, result)
		} else {
			bot.SendMessage(sourceEvent.Channel, result)
		}
	}
}

// commandAuth is a command for authenticating an user with the bot.
func commandAuth(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	if len(params) == 2 {
		if err := bot.authenticateUser(params[0], sourceEvent.UserId, params[1]); err != nil {
			bot.Log.Warningf("Couldn't authenticate %s: %s", params[0], err)
			return
		}
		bot.SendMessage(sourceEvent.Channel, "You are now logged in.")
	}
}

// commandUserAdd will add a new user to bot's database and authenticate.
func commandUserAdd(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	if len(params) == 2 {
		if bot.UserIsAuthenticated(sourceEvent.UserId) {
			bot.SendMessage(sourceEvent.Channel, "You are already authenticated.")
			return
		}

		if err := bot.addUser(params[0], params[1], false, false); err != nil {
			bot.Log.Warningf("Couldn't add user %s: %s", params[0], err)
			bot.SendMessage(sourceEvent.Channel, fmt.Sprintf("Can't add user: %s", err))
			return
		}
		if err := bot.authenticateUser(params[0], sourceEvent.UserId, params[1]); err != nil {
			bot.Log.Warningf("Couldn't authenticate %s: %s", params[0], err)
			return
		}
		bot.SendMessage(sourceEvent.Channel, "User added. You are now logged in.")
	}
}

// commandIgnore will control the ignore list.
func commandIgnore(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	if len(params) == 2 {
		command := params[0]
		userId := params[1]
		if command == "add" {
			if bot.UserIsOwner(userId) {
				bot.SendMessage(sourceEvent.Channel, "You cannot ignore the owner.")
				return
			}
			bot.AddToIgnoreList(userId)
		} else if command == "remove" {
			bot.RemoveFromIgnoreList(userId)
		}
		bot.SendMessage(sourceEvent.Channel, "Ignore list changed.")
	}
}

// commandConnect establishes the link to the game server.
func commandConnect(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	if conn.State() != admin.StateDisconnected {
		bot.SendMessage(conn.Channel(), bot.Texts.AlreadyConnected)
		return
	}
	bot.SendMessage(conn.Channel(), bot.Texts.Connecting)
	// A session never restarts on a used object, a fresh one replaces it.
	fresh := bot.Servers.Refresh(conn)
	go func() {
		if err := fresh.Connect(); err != nil {
			bot.Log.Warningf("Connect to %s failed: %s", fresh.ID(), err)
			bot.SendMessage(fresh.Channel(), fmt.Sprintf("%s (%s)", bot.Texts.UnableToConnect, err))
		}
	}()
}

// commandDisconnect closes the link to the game server.
func commandDisconnect(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || conn.State() == admin.StateDisconnected {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	bot.SendMessage(conn.Channel(), bot.Texts.Disconnecting)
	conn.Disconnect(false)
}

// commandRcon passes a console command to the game server. Output comes
// back to the channel through the rcon result events.
func commandRcon(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, params := bot.connectionFor(sourceEvent, params)
	if conn == nil {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	if len(params) == 0 {
		return
	}
	command := strings.Join(params, " ")
	switch err := conn.StartRcon(sourceEvent.Nick, command); err {
	case nil:
	case servers.ErrRconBusy:
		bot.SendMessage(conn.Channel(), bot.Texts.RconBusy)
	case servers.ErrRconTooLong:
		bot.SendMessage(conn.Channel(), bot.Texts.RconTooLong)
	case servers.ErrNotConnected:
		bot.SendMessage(conn.Channel(), bot.Texts.NotConnected)
	default:
		bot.SendMessage(conn.Channel(), fmt.Sprintf("Rcon failed: %s", err))
	}
}

// commandPause pauses the game. The output stays internal but the rcon
// slot is held like for any other command.
func commandPause(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	switch err := conn.SilentRcon("pause"); err {
	case nil:
		bot.SendMessage(conn.Channel(), "Paused the game.")
	case servers.ErrRconBusy:
		bot.SendMessage(conn.Channel(), bot.Texts.RconBusy)
	default:
		bot.SendMessage(conn.Channel(), fmt.Sprintf("Can't pause: %s", err))
	}
}

// commandUnpause unpauses the game.
func commandUnpause(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	switch err := conn.SilentRcon("unpause"); err {
	case nil:
		bot.SendMessage(conn.Channel(), "Unpaused the game.")
	case servers.ErrRconBusy:
		bot.SendMessage(conn.Channel(), bot.Texts.RconBusy)
	default:
		bot.SendMessage(conn.Channel(), fmt.Sprintf("Can't unpause: %s", err))
	}
}

// commandPassword shows or rotates the join password.
func commandPassword(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	rotate := len(params) > 0 && params[0] == "rotate"
	if rotate {
		params = params[1:]
	}
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	if rotate {
		if !bot.checkPermission(sourceEvent) {
			bot.SendMessage(conn.Channel(), fmt.Sprintf("%s, %s", sourceEvent.Nick, bot.Texts.NeedsPrivileges))
			return
		}
		bot.rotatePassword(conn)
		return
	}
	if conn.Password() == "" {
		bot.SendMessage(conn.Channel(), "The server has no join password.")
		return
	}
	bot.SendMessage(conn.Channel(), fmt.Sprintf("Join password: %s", conn.Password()))
}

// commandDate shows the in-game date.
func commandDate(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	bot.SendMessage(conn.Channel(), fmt.Sprintf("In-game date is %s.", conn.Date()))
}

// commandClients lists the clients connected to the game.
func commandClients(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	clients := conn.Clients()
	if len(clients) == 0 {
		bot.SendMessage(conn.Channel(), "No clients connected.")
		return
	}
	for _, client := range clients {
		playing := "spectating"
		if !client.Spectating() {
			playing = fmt.Sprintf("playing company #%d", client.PlayAs+1)
		}
		bot.SendMessage(conn.Channel(), fmt.Sprintf("#%d %s (%s), %s", client.ID, client.Name, client.Hostname, playing))
	}
}

// commandCompanies lists the companies in the game.
func commandCompanies(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	companies := conn.Companies()
	if len(companies) == 0 {
		bot.SendMessage(conn.Channel(), "No companies in the game.")
		return
	}
	for _, company := range companies {
		ai := ""
		if company.AI {
			ai = ", AI"
		}
		bot.SendMessage(conn.Channel(), fmt.Sprintf(
			"#%d %s (%s%s): money %s, loan %s, %d vehicles, %d stations",
			company.ID+1, company.Name, company.Colour.Name(), ai,
			bot.Humanizer.SiPrefixFast(float64(company.Money)),
			bot.Humanizer.SiPrefixFast(float64(company.Loan)),
			company.Vehicles.Total(), company.Stations.Total()))
	}
}

var (
	stableVersionRe  = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	testingVersionRe = regexp.MustCompile(`^\d+\.\d+\.\d+-(?:RC|rc|beta)\d+$`)
	trunkVersionRe   = regexp.MustCompile(`^r\d{5}$`)
)

// generateDownloadURL builds a download link for the given game version.
// Without an os type the link points at the download page, with one it
// points straight at the binary.
func generateDownloadURL(version, osType string) string {
	if osType == "" {
		url := "http://www.openttd.org/en/"
		if stableVersionRe.MatchString(version) || testingVersionRe.MatchString(version) {
			return url + "download-stable/" + version
		}
		if trunkVersionRe.MatchString(version) {
			return url + "download-trunk/" + version
		}
		return ""
	}

	url := "http://binaries.openttd.org/"
	if stableVersionRe.MatchString(version) {
		url += fmt.Sprintf("releases/%s/openttd-%s-", version, version)
	} else if trunkVersionRe.MatchString(version) {
		url += fmt.Sprintf("nightlies/trunk/%s/openttd-trunk-%s-", version, version)
	} else {
		return ""
	}
	switch osType {
	case "lin":
		return url + "linux-generic-i686.tar.xz"
	case "lin64":
		return url + "linux-generic-amd64.tar.xz"
	case "osx":
		return url + "macosx-universal.zip"
	case "source":
		return url + "source.tar.xz"
	case "win32", "win64", "win9x":
		return url + "windows-" + osType + ".zip"
	}
	return ""
}

// commandDownload shows a download link matching the server version.
func commandDownload(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn := bot.Servers.ByChannel(sourceEvent.Channel)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	osType := ""
	if len(params) > 0 {
		osType = params[0]
	}
	url := generateDownloadURL(conn.ServerInfo().Version, osType)
	if url == "" {
		bot.SendMessage(conn.Channel(), "No known download matches that version.")
		return
	}
	bot.SendMessage(conn.Channel(), url)
}

// commandPing measures the round trip to the game server. The answer
// comes back through the pong event.
func commandPing(bot *Bot, sourceEvent *events.EventMessage, params []string) {
	conn, _ := bot.connectionFor(sourceEvent, params)
	if conn == nil || !conn.Connected() {
		bot.SendMessage(sourceEvent.Channel, bot.Texts.NotConnected)
		return
	}
	if err := conn.Ping(); err != nil {
		bot.SendMessage(conn.Channel(), fmt.Sprintf("Can't ping: %s", err))
	}
}
