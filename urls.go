package suds

// Handling of URLs posted in game chat.

import (
	"regexp"
	"time"

	"github.com/ropenttd/suds/events"
	"github.com/ropenttd/suds/utils"
	"mvdan.cc/xurls/v2"
)

var titleRe = regexp.MustCompile("(?is)<title.*?>(.+?)</title>")

// markURLAnnounced tells whether the link may be announced and records the
// announcement. Handlers run on separate goroutines, so access is locked.
func (bot *Bot) markURLAnnounced(linkKey string) bool {
	bot.urlAnnounceMu.Lock()
	defer bot.urlAnnounceMu.Unlock()
	if time.Since(bot.lastURLAnnouncedTime[linkKey]) < bot.Config.UrlAnnounceIntervalMinutes*time.Minute {
		return false
	}
	bot.lastURLAnnouncedTime[linkKey] = time.Now()
	return true
}

// handleGameURLs finds all URLs in a relayed chat line, records them and
// announces their titles on the channel.
func (bot *Bot) handleGameURLs(message events.EventMessage) {
	// Catch errors.
	defer func() {
		if Debug {
			return
		} // When in debug mode fail on all errors.
		if r := recover(); r != nil {
			bot.Log.Errorf("FATAL ERROR in URL handler: %s", r)
		}
	}()

	// Find all URLs in the message.
	links := xurls.Strict().FindAllString(message.Message, -1)
	// Remove multiple same links from one message.
	links = utils.RemoveDuplicates(links)
	for i := range links {
		// Validate the url.
		bot.Log.Infof("Got link %s", links[i])
		link := utils.StandardizeURL(links[i])
		bot.Log.Debugf("Standardized to: %s", link)

		// Try to get the body of the page.
		err, finalLink, body := bot.GetPageBody(link, map[string]string{})
		if err != nil {
			bot.Log.Warningf("Couldn't fetch the body: %s", err)
		}

		// Get the title.
		title := ""
		match := titleRe.FindStringSubmatch(string(body))
		if len(match) > 1 {
			title = utils.CleanString(match[1], true)
		}

		// Insert URL into the db.
		if _, err := bot.Db.Exec(
			`INSERT INTO urls(server, channel, nick, link, quote, title) VALUES(?, ?, ?, ?, ?, ?)`,
			message.ServerID, message.Channel, message.Nick, finalLink, message.Message, title); err != nil {
			bot.Log.Warningf("Can't add url to database: %s", err)
		}

		// Announce the title, unless the link was already announced recently.
		if title != "" && bot.markURLAnnounced(finalLink+message.Channel) {
			bot.SendNotice(message.Channel, title)
		}
	}
}
