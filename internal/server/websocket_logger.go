package server

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketLogger emits structured connection-lifecycle events.
type WebSocketLogger struct {
	logger *zap.Logger
}

func NewWebSocketLogger() *WebSocketLogger {
	return &WebSocketLogger{
		logger: zap.L().With(zap.String("component", "websocket")),
	}
}

func (l *WebSocketLogger) fields(event string, userID uuid.UUID, sessionID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("session_id", sessionID),
	}, extra...)
}

func (l *WebSocketLogger) Info(event string, userID uuid.UUID, sessionID string, extra ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, sessionID, extra)...)
}

func (l *WebSocketLogger) Warn(event string, userID uuid.UUID, sessionID string, extra ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, sessionID, extra)...)
}

func (l *WebSocketLogger) Error(event string, userID uuid.UUID, sessionID string, err error, extra ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, userID, sessionID, append(extra, zap.Error(err)))...)
}
