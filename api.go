package suds

// Public bot API.

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"reflect"
	"strings"
	"text/template"

	"github.com/ropenttd/suds/admin"
	"github.com/ropenttd/suds/utils"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// RegisterAdminDialer provides the admin protocol implementation the bot
// will dial game servers with. Must be called before Run.
func (bot *Bot) RegisterAdminDialer(dial admin.DialFunc) {
	if dial == nil {
		bot.Log.Fatal("Nil dialer provided.")
	}
	bot.dial = dial
}

// RegisterCommand will register a new command with the bot.
func (bot *Bot) RegisterCommand(cmd *BotCommand) {
	for _, name := range cmd.CommandNames {
		for existingName := range bot.commands {
			if name == existingName {
				bot.Log.Fatalf("Command under alias '%s' already exists.", name)
			}
		}
		bot.commands[name] = cmd
	}
}

// SendMessage sends a message to the channel.
func (bot *Bot) SendMessage(channel, message string) {
	bot.Log.Debugf("Sending message to %s: %s", channel, message)
	bot.transport.SendMessage(channel, message)
}

// SendNotice sends a notice to the channel.
func (bot *Bot) SendNotice(channel, message string) {
	bot.Log.Debugf("Sending notice to %s: %s", channel, message)
	bot.transport.SendNotice(channel, message)
}

// SendPrivateMessage sends a message directly to the user.
func (bot *Bot) SendPrivateMessage(nick, message string) {
	bot.Log.Debugf("Sending private message to %s: %s", nick, message)
	bot.transport.SendPrivMessage(nick, message)
}

// SendMassNotice sends a notice to all the channels bot is on.
func (bot *Bot) SendMassNotice(message string) {
	bot.Log.Debugf("Sending mass notice: %s", message)
	bot.transport.SendMassNotice(message)
}

// GetPageBody gets and returns a body of a page. Return format is error, final url, body.
func (bot *Bot) GetPageBody(URL string, customHeaders map[string]string) (error, string, []byte) {
	if URL == "" {
		return errors.New("Empty URL"), "", nil
	}
	// Build the request.
	req, err := http.NewRequest("GET", URL, nil)
	if err != nil {
		return err, "", nil
	}
	if customHeaders == nil {
		customHeaders = map[string]string{}
	}
	if customHeaders["User-Agent"] == "" {
		customHeaders["User-Agent"] = bot.Config.HttpDefaultUserAgent
	}
	for k, v := range customHeaders {
		req.Header.Set(k, v)
	}

	// Get response.
	bot.Log.Debugf("Fetching page: %s", URL)
	resp, err := bot.HTTPClient.Do(req)
	if err != nil {
		return err, "", nil
	}
	if resp.StatusCode >= 400 {
		bot.Log.Warnf("Got HTTP response: %s", resp.Status)
		return errors.New(resp.Status), "", nil
	}
	defer resp.Body.Close()

	// Update the URL if it changed after redirects.
	finalLink := resp.Request.URL.String()
	if finalLink != "" && finalLink != URL {
		bot.Log.Debugf("%s becomes %s", URL, finalLink)
		URL = finalLink
	}

	// Load the body up to PageBodyMaxSize.
	body := make([]byte, bot.Config.PageBodyMaxSize)
	if num, err := io.ReadFull(resp.Body, body); err != nil && err != io.ErrUnexpectedEOF {
		return err, URL, nil
	} else {
		// Trim unneeded 0 bytes so that JSON unmarshaller won't complain.
		body = body[:num]
	}
	// Get the content-type
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	// If type is text, decode the body to UTF-8.
	if strings.Contains(contentType, "text/") || strings.Contains(contentType, "www-form-urlencoded") {
		// Try to get more significant part for encoding detection.
		sample := bytes.Join(bot.webContentSampleRe.FindAll(body, -1), []byte{})
		if len(sample) < 100 {
			sample = body
		}
		// Unescape HTML tokens.
		sample = []byte(html.UnescapeString(string(sample)))
		// Try to only get charset from content type. Needed because some pages serve broken Content-Type header.
		detectionContentType := contentType
		tokens := strings.Split(contentType, ";")
		for _, t := range tokens {
			if strings.Contains(strings.ToLower(t), "charset") {
				detectionContentType = "text/plain; " + t
				break
			}
		}
		// Detect encoding and transform.
		encoding, _, _ := charset.DetermineEncoding(sample, detectionContentType)
		decodedBody, _, _ := transform.Bytes(encoding.NewDecoder(), body)
		return nil, URL, decodedBody
	} else if strings.Contains(contentType, "application/json") {
		return nil, URL, body
	} else {
		bot.Log.Debugf("Not fetching the body for Content-Type: %s", contentType)
	}
	return nil, URL, nil
}

// LoadTexts loads texts from a section of the texts file into a struct, auto handling templates and lists.
// The name of the field in the data struct defines the name in the texts file.
// The type of the field determines the expected value.
func (bot *Bot) LoadTexts(section string, data interface{}) error {

	reflectedData := reflect.ValueOf(data).Elem()

	for i := 0; i < reflectedData.NumField(); i++ {
		fieldDef := reflectedData.Type().Field(i)
		// Get the field name.
		fieldName := fieldDef.Name
		// Get the field type name.
		fieldType := fmt.Sprint(fieldDef.Type)
		// Get the field itself.
		field := reflectedData.FieldByName(fieldName)
		if !field.CanSet() {
			return fmt.Errorf("field %s is not settable", fieldName)
		}

		// Load configured text for the field.
		key := fmt.Sprintf("%s.%s", section, fieldName)
		if !bot.fullTexts.Has(key) {
			return fmt.Errorf("couldn't load text for field %s, key %s", fieldName, key)
		}

		if fieldType == "*template.Template" { // This field is a template.
			temp, err := template.New(fieldName).Parse(bot.fullTexts.Get(key).(string))
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(temp))
		} else if fieldType == "string" { // Regular text field.
			field.Set(reflect.ValueOf(bot.fullTexts.Get(key).(string)))
		} else if fieldType == "[]string" {
			field.Set(reflect.ValueOf(utils.ToStringSlice(bot.fullTexts.Get(key).([]interface{}))))
		} else {
			return fmt.Errorf("unsupported type of text field: %s", fieldType)
		}
	}

	return nil
}

// AddToIgnoreList will add a user to the ignore list.
func (bot *Bot) AddToIgnoreList(userId string) {
	ignored := strings.Split(bot.getVar("_ignored"), " ")
	ignored = utils.RemoveDuplicates(append(ignored, userId))
	bot.setVar("_ignored", strings.Join(ignored, " "))
	// Update the actual blocklist in the event dispatcher.
	bot.EventDispatcher.SetBlackList(ignored)
	bot.Log.Infof("%s added to ignore list.", userId)
}

// RemoveFromIgnoreList will remove user from the ignore list.
func (bot *Bot) RemoveFromIgnoreList(userId string) {
	ignored := strings.Split(bot.getVar("_ignored"), " ")
	ignored = utils.RemoveFromSlice(ignored, userId)
	bot.setVar("_ignored", strings.Join(ignored, " "))
	// Update the actual blocklist in the event dispatcher.
	bot.EventDispatcher.SetBlackList(ignored)
	bot.Log.Infof("%s removed from ignore list.", userId)
}
