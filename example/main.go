// Example usage of suds.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/ropenttd/suds"
	"github.com/ropenttd/suds/admin"
)

var (
	configFile = flag.String("c", "config.ini", "Path to TOML configuration file for the bot.")
	textsFile  = flag.String("t", "texts.ini", "Path to TOML configuration file with the bot texts.")
)

func init() {
	flag.Parse()
}

// Entry point
func main() {
	// This will create bot's structures. Feel free to modify what you need afterwards.
	bot, err := suds.New(*configFile, *textsFile)
	if err != nil {
		log.Fatalf("Can't create the bot: %s", err)
	}

	// Plug in your admin protocol client library here. The dialer has to
	// open a session and return it behind the admin.Client interface.
	bot.RegisterAdminDialer(func(host string, port int, timeout time.Duration) (admin.Client, error) {
		return nil, fmt.Errorf("no admin protocol client wired for %s:%d", host, port)
	})

	// This will init the bot's mechanisms and run the bot's main loop.
	bot.Run()
}
