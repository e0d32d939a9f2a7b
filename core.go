// Package suds provides an IRC bot that bridges IRC channels with OpenTTD
// game servers over the admin protocol.
package suds

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/pawelszydlo/humanize"
	"github.com/pelletier/go-toml"
	"github.com/ropenttd/suds/events"
	"github.com/ropenttd/suds/servers"
	ircTransport "github.com/ropenttd/suds/transports/irc"
	"github.com/ropenttd/suds/utils"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	Version = "0.9.0"
	Debug   = false // Set to true to crash on runtime errors.
)

// New creates a new bot.
func New(configFile, textsFile string) (*Bot, error) {
	rand.Seed(time.Now().Unix())

	// Default configuration.
	config := Configuration{
		AntiFloodDelay:             5,
		ChatLogging:                true,
		CommandsPer5:               3,
		PageBodyMaxSize:            100 * 1024,
		HttpDefaultUserAgent:       "Mozilla/5.0 (compatible; suds)",
		UrlAnnounceIntervalMinutes: 15,
		HandshakeTimeout:           5 * time.Second,
		PasswordRotationMinutes:    0,
		Language:                   "en",
		Name:                       "suds",
		LogLevel:                   logrus.DebugLevel,
	}

	// Init bot struct.
	bot := &Bot{
		initDone:   false,
		Log:        logrus.New(),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},

		ConfigFile: configFile,
		Config:     &config,
		TextsFile:  textsFile,
		Texts:      &botTexts{},

		authenticatedUsers:  map[string]string{},
		authenticatedAdmins: map[string]string{},
		authenticatedOwners: map[string]string{},

		commands:           map[string]*BotCommand{},
		commandUseLimit:    map[string]int{},
		commandWarn:        map[string]bool{},
		commandsHideParams: map[string]bool{},

		gameLogs:             map[string]*lumberjack.Logger{},
		lastURLAnnouncedTime: map[string]time.Time{},
		webContentSampleRe:   regexp.MustCompile(`(?i)<[^>]*?description[^<]*?>|<title>.*?</title>`),
	}
	// Logging configuration.
	bot.Log.Level = bot.Config.LogLevel
	bot.Log.Formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02][15:04:05"}

	// Load config.
	var err error
	if bot.fullConfig, err = toml.LoadFile(bot.ConfigFile); err != nil {
		return nil, fmt.Errorf("can't load config: %w", err)
	}
	bot.loadConfig()
	bot.Log.Level = bot.Config.LogLevel

	// Load texts.
	if bot.fullTexts, err = toml.LoadFile(bot.TextsFile); err != nil {
		return nil, fmt.Errorf("can't load texts: %w", err)
	}
	if err := bot.LoadTexts("bot", bot.Texts); err != nil {
		return nil, fmt.Errorf("can't load texts: %w", err)
	}

	// Humanizer.
	if bot.Humanizer, err = humanize.New(bot.Config.Language); err != nil {
		return nil, fmt.Errorf("can't init humanizer: %w", err)
	}

	bot.EventDispatcher = events.New(bot.Log)
	bot.Servers = servers.NewRegistry(bot.Log)
	bot.poller = servers.NewPoller(bot.Servers, bot.Log)

	return bot, nil
}

// loadConfig overwrites the defaults with values from the config file.
func (bot *Bot) loadConfig() {
	get := bot.fullConfig.GetDefault
	bot.Config.Name = get("bot.name", bot.Config.Name).(string)
	bot.Config.Language = get("bot.language", bot.Config.Language).(string)
	bot.Config.ChatLogging = get("bot.chat_logging", bot.Config.ChatLogging).(bool)
	bot.Config.AntiFloodDelay = int(get("bot.anti_flood_delay", int64(bot.Config.AntiFloodDelay)).(int64))
	bot.Config.CommandsPer5 = int(get("bot.commands_per_5", int64(bot.Config.CommandsPer5)).(int64))
	bot.Config.HandshakeTimeout = time.Duration(
		get("bot.handshake_timeout_seconds", int64(5)).(int64)) * time.Second
	bot.Config.PasswordRotationMinutes = time.Duration(
		get("bot.password_rotation_minutes", int64(0)).(int64))
	bot.Config.LogLevel, _ = logrus.ParseLevel(get("bot.log_level", "debug").(string))
}

// serverConfigs builds per-server configurations from the config tree.
func (bot *Bot) serverConfigs() []servers.Config {
	configs := []servers.Config{}
	tree, ok := bot.fullConfig.Get("servers").(*toml.Tree)
	if !ok {
		bot.Log.Warningf("No game servers configured.")
		return configs
	}
	for _, id := range tree.Keys() {
		server, ok := tree.Get(id).(*toml.Tree)
		if !ok {
			continue
		}
		configs = append(configs, servers.Config{
			ID:           id,
			Channel:      server.GetDefault("channel", "").(string),
			Host:         server.GetDefault("host", "localhost").(string),
			Port:         int(server.GetDefault("port", int64(3977)).(int64)),
			Password:     server.GetDefault("password", "").(string),
			Timeout:      bot.Config.HandshakeTimeout,
			AutoConnect:  server.GetDefault("auto_connect", false).(bool),
			AllowOps:     server.GetDefault("allow_ops", false).(bool),
			PlayAsPlayer: server.GetDefault("play_as_player", true).(bool),
			MinPlayers:   int(server.GetDefault("min_players", int64(0)).(int64)),
			BotName:      bot.Config.Name,
			BotVersion:   Version,
		})
	}
	return configs
}

// initialize performs initialization of bot's mechanisms.
func (bot *Bot) initialize() {
	bot.Log.Infof("I am suds, version %s", Version)

	if bot.dial == nil {
		bot.Log.Fatalf("No admin protocol dialer registered. Call RegisterAdminDialer before Run.")
	}

	// Init database.
	if err := bot.initDb(); err != nil {
		bot.Log.Fatalf("Can't init database: %s", err)
	}
	bot.ensureOwnerExists()

	// Create log folder.
	if bot.Config.ChatLogging {
		exists, err := utils.DirExists("logs")
		if err != nil {
			bot.Log.Fatalf("Can't check if logs dir exists: %s", err)
		}
		if !exists {
			if err := os.Mkdir("logs", 0700); err != nil {
				bot.Log.Fatalf("Can't create logs folder: %s", err)
			}
		}
	}

	// Build the game server connections.
	channels := []string{}
	for _, cfg := range bot.serverConfigs() {
		if cfg.Channel == "" {
			bot.Log.Warningf("Server %s has no channel configured, skipping.", cfg.ID)
			continue
		}
		conn := servers.NewConnection(cfg, bot.dial, bot.EventDispatcher, bot.Log)
		bot.Servers.Add(conn)
		channels = append(channels, cfg.Channel)
		bot.Log.Infof("Bridging %s to %s:%d.", cfg.Channel, cfg.Host, cfg.Port)
	}

	// Build the IRC transport.
	bot.transport = ircTransport.New(
		bot.Config.Name, channels, bot.fullConfig, bot.Log, bot.EventDispatcher)

	// Attach event listeners.
	bot.attachListeners()

	// Init bot commands.
	bot.initBotCommands()

	bot.initDone = true
	bot.Log.Infof("Bot init done.")
}

// close cleans up after the bot.
func (bot *Bot) close() {
	bot.poller.Stop()
	for _, conn := range bot.Servers.All() {
		conn.Disconnect(false)
	}
	for _, logger := range bot.gameLogs {
		logger.Close()
	}
	bot.Db.Close()
}

// Run starts the bot's main loop.
func (bot *Bot) Run() {
	// Initialize bot mechanisms.
	bot.initialize()
	defer bot.close()

	// Start watching the game sockets.
	bot.poller.Start()

	// 5 minute ticker.
	ticker := time.NewTicker(time.Minute * 5)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			bot.clearCommandLimits()
		}
	}()

	// Join password rotation ticker.
	if bot.Config.PasswordRotationMinutes > 0 {
		rotation := time.NewTicker(time.Minute * bot.Config.PasswordRotationMinutes)
		defer rotation.Stop()
		go func() {
			for range rotation.C {
				for _, conn := range bot.Servers.All() {
					if conn.Connected() {
						bot.rotatePassword(conn)
					}
				}
			}
		}()
	}

	// The transport loop carries the bot from here on.
	bot.transport.Run()
}
