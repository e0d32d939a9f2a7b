package transports

// Transport interface. A transport is the bot's chat-side surface: it
// delivers notifications and feeds chat events into the dispatcher.
type Transport interface {
	Name() string
	Run()
	NickIsMe(nick string) bool
	// IsOpped tells whether the nick has operator status on the channel.
	IsOpped(channel, nick string) bool
	SendMessage(channel, message string)
	SendNotice(channel, message string)
	SendPrivMessage(user, message string)
	SendMassNotice(message string)
}
