package notify

import (
	"context"

	"cdczone-bot-go/internal/logger"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one notification: trade fills, breaker trips, cycle failures.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier delivers alerts to an external channel.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. Used when no webhook is
// configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	switch alert.Level {
	case AlertCritical:
		logger.S().Errorw(alert.Title, "message", alert.Message, "level", alert.Level)
	case AlertWarning:
		logger.S().Warnw(alert.Title, "message", alert.Message, "level", alert.Level)
	default:
		logger.S().Infow(alert.Title, "message", alert.Message, "level", alert.Level)
	}
	return nil
}
