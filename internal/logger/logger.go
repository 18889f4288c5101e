package logger

import (
	"github.com/betanery/easy-doc-signer-sub000/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger instance
func NewLogger(cfg *config.Config) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &Logger{Logger: log}
}

// WithTenant adds tenant context to log entries
func (l *Logger) WithTenant(tenantID string) *logrus.Entry {
	return l.WithField("tenant_id", tenantID)
}

// WithUser adds user context to log entries
func (l *Logger) WithUser(userID string) *logrus.Entry {
	return l.WithField("user_id", userID)
}

// WithRequest adds request context to log entries
func (l *Logger) WithRequest(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

// WithDocument adds tenant and provider document context to log entries
func (l *Logger) WithDocument(tenantID, documentID string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"document_id": documentID,
	})
}

// WithAction adds the document action verb to log entries
func (l *Logger) WithAction(tenantID, action string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"action":    action,
	})
}
