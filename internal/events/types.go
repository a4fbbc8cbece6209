package events

// Event enumerates the topics the bot publishes for the live dashboard feed.
type Event string

const (
	EventTradeExecuted Event = "trade.executed"
	EventLogEntry      Event = "log.entry"
	EventBotState      Event = "bot.state"
)
