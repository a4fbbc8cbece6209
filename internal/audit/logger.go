// Package audit writes the bot's durable log trail. Every entry goes to
// stdout, to the logs table, and onto the event bus for the live feed.
package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"meanrev-bot/internal/events"
	"meanrev-bot/pkg/db"
)

// Entry is the payload published on the bus for each log line.
type Entry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Logger records leveled audit entries.
type Logger struct {
	DB  *db.Database
	Bus *events.Bus
}

func New(database *db.Database, bus *events.Bus) *Logger {
	return &Logger{DB: database, Bus: bus}
}

func (l *Logger) Info(format string, args ...any)    { l.write(db.LevelInfo, format, args...) }
func (l *Logger) Warning(format string, args ...any) { l.write(db.LevelWarning, format, args...) }
func (l *Logger) Error(format string, args ...any)   { l.write(db.LevelError, format, args...) }
func (l *Logger) Success(format string, args ...any) { l.write(db.LevelSuccess, format, args...) }

func (l *Logger) write(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", level, msg)

	if l == nil {
		return
	}
	if l.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.DB.InsertLog(ctx, level, msg); err != nil {
			// The audit trail is best-effort; losing one row must not
			// stop the trading loop.
			log.Printf("audit: store log entry: %v", err)
		}
	}
	if l.Bus != nil {
		l.Bus.Publish(events.EventLogEntry, Entry{Level: level, Message: msg, Time: time.Now()})
	}
}
