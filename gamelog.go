package suds

// Per-server rotating game logs.

import (
	"fmt"
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// gameLog returns the rotating log writer for a server, creating it on
// first use. Both the poller and the transport goroutine scribe.
func (bot *Bot) gameLog(serverID string) *lumberjack.Logger {
	bot.gameLogsMu.Lock()
	defer bot.gameLogsMu.Unlock()
	if logger, exists := bot.gameLogs[serverID]; exists {
		return logger
	}
	logger := &lumberjack.Logger{
		Filename:   fmt.Sprintf("logs/%s.log", serverID),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
	}
	bot.gameLogs[serverID] = logger
	return logger
}

// scribeGame saves one line into the server's game log file.
func (bot *Bot) scribeGame(serverID string, format string, params ...interface{}) {
	if !bot.Config.ChatLogging || serverID == "" {
		return
	}
	scribe := log.New(bot.gameLog(serverID), "", log.Ldate|log.Ltime)
	scribe.Println(fmt.Sprintf(format, params...))
}
