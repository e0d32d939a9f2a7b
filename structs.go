package suds

// All structures used by the bot.

import (
	"database/sql"
	"net/http"
	"regexp"
	"sync"
	"text/template"
	"time"

	"github.com/pawelszydlo/humanize"
	"github.com/pelletier/go-toml"
	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/events"
	"github.com/ropenttd/suds/servers"
	"github.com/ropenttd/suds/transports"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Bot itself.
type Bot struct {
	// Was initialization complete?
	initDone bool
	// Database connection.
	Db *sql.DB
	// HTTP client.
	HTTPClient *http.Client
	// Logger.
	Log *logrus.Logger
	// Path to config file.
	ConfigFile string
	// Bot's configuration.
	Config *Configuration
	// Full config file tree.
	fullConfig *toml.Tree
	// Path to texts file.
	TextsFile string
	// Full texts file tree.
	fullTexts *toml.Tree
	// Bot texts struct.
	Texts *botTexts
	// Humanizer for the bot's language.
	Humanizer *humanize.Humanizer

	// Event dispatcher.
	EventDispatcher *events.EventDispatcher
	// Chat side of the bridge.
	transport transports.Transport
	// Game side of the bridge.
	Servers *servers.Registry
	poller  *servers.Poller
	// Dialer for the admin protocol, provided by the embedder.
	dial admin.DialFunc
	// Guards the one-shot autoconnect after the transport comes up.
	autoConnect sync.Once

	// Currently authenticated users.
	authenticatedUsers  map[string]string
	authenticatedAdmins map[string]string
	authenticatedOwners map[string]string
	// Registered bot commands.
	commands map[string]*BotCommand
	// Use counters and warnings, written by the transport goroutine and
	// cleared by the limits ticker.
	commandLimitMu  sync.Mutex
	commandUseLimit map[string]int
	commandWarn     map[string]bool
	// Commands that will not have their params listed in the logs (auth etc.)
	commandsHideParams map[string]bool

	// Rotating game log writers, per server.
	gameLogsMu sync.Mutex
	gameLogs   map[string]*lumberjack.Logger
	// Time when URL info was last announced, per channel + link. URL
	// handlers run on their own goroutines.
	urlAnnounceMu        sync.Mutex
	lastURLAnnouncedTime map[string]time.Time
	// Regular expression for extracting sample text from website.
	webContentSampleRe *regexp.Regexp
}

// Bot's commands.
type BotCommand struct {
	// Names of the command (main and aliases).
	CommandNames []string
	// Does this command require private query?
	Private bool
	// This command can only be run by a trusted user (or a channel op, where allowed)?
	Privileged bool
	// This command can only be run by an admin?
	Admin bool
	// Help string showing possible parameters.
	HelpParams string
	// Help string with the description.
	HelpDescription string
	// Function to be executed.
	CommandFunc func(bot *Bot, sourceEvent *events.EventMessage, params []string)
}

// Bot's configuration. It will be loaded from the provided file on New(), overwriting any defaults.
type Configuration struct {
	Name                       string
	Language                   string
	AntiFloodDelay             int
	CommandsPer5               int
	ChatLogging                bool
	PageBodyMaxSize            uint
	HttpDefaultUserAgent       string
	UrlAnnounceIntervalMinutes time.Duration
	// Handshake read timeout for game connections.
	HandshakeTimeout time.Duration
	// Minutes between join password rotations, 0 disables rotation.
	PasswordRotationMinutes time.Duration
	LogLevel                logrus.Level
}

// Bot's core texts.
type botTexts struct {
	Welcome          *template.Template
	Connecting       string
	AlreadyConnected string
	UnableToConnect  string
	ConnectionLost   string
	Reconnecting     string
	NotConnected     string
	Disconnecting    string
	RconBusy         string
	RconTooLong      string
	NeedsPriv        string
	NeedsPrivileges  string
	NeedsAdmin       string
	CommandLimit     string
	WrongCommand     []string
	PasswordWords    []string
}
