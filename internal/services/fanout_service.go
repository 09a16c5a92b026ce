package services

import (
	"context"
	"time"

	"advisor-chat/internal/domain/conversation"
	"advisor-chat/internal/events"
	"advisor-chat/internal/notify"
	"advisor-chat/pkg/logger"

	"github.com/google/uuid"
)

// LivePusher is the live-connection transport consumed by fan-out.
type LivePusher interface {
	PushToUser(userID uuid.UUID, event events.Event)
	IsOnline(userID uuid.UUID) bool
}

// FanoutService distributes one persisted state change to every participant:
// live push to connected sessions, offline envelopes to the notification
// dispatcher. It runs after the authoritative write and must never fail the
// request that triggered it.
type FanoutService struct {
	pusher   LivePusher
	notifier notify.Notifier
	log      *logger.Logger
	timeout  time.Duration
}

func NewFanoutService(pusher LivePusher, notifier notify.Notifier, log *logger.Logger) *FanoutService {
	return &FanoutService{
		pusher:   pusher,
		notifier: notifier,
		log:      log,
		timeout:  5 * time.Second,
	}
}

// Broadcast pushes the event to every participant's live sessions. Best
// effort; a participant without a connection just misses the push.
func (s *FanoutService) Broadcast(event events.Event, participants []conversation.Participant) {
	if s == nil || s.pusher == nil {
		return
	}
	go func() {
		defer s.recoverPanic(event.Type)
		for _, p := range participants {
			if !p.IsActive {
				continue
			}
			s.pusher.PushToUser(p.UserID, event)
		}
	}()
}

// Dispatch is Broadcast plus offline notification: every other active
// participant with notifications enabled gets an in-app envelope, and an email
// envelope when they want email and have no live connection. Muted
// participants are skipped entirely.
func (s *FanoutService) Dispatch(event events.Event, participants []conversation.Participant, actorID uuid.UUID) {
	s.Broadcast(event, participants)

	if s == nil || s.notifier == nil {
		return
	}
	go func() {
		defer s.recoverPanic(event.Type)
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		for _, p := range participants {
			if !p.IsActive || p.UserID == actorID {
				continue
			}
			if !p.Preferences.Notifications || p.IsMuted {
				continue
			}

			s.notify(ctx, notify.Envelope{
				UserID:         p.UserID,
				Channel:        notify.ChannelInApp,
				EventType:      event.Type,
				ConversationID: event.ConversationID,
				Payload:        event.Payload,
			})

			if p.Preferences.EmailNotifications && !s.isOnline(p.UserID) {
				s.notify(ctx, notify.Envelope{
					UserID:         p.UserID,
					Channel:        notify.ChannelEmail,
					EventType:      event.Type,
					ConversationID: event.ConversationID,
					Payload:        event.Payload,
				})
			}
		}
	}()
}

func (s *FanoutService) notify(ctx context.Context, env notify.Envelope) {
	if err := s.notifier.Notify(ctx, env); err != nil {
		// The state change is already durable; delivery is retried downstream.
		if s.log != nil {
			s.log.Errorf("notification dispatch failed: user=%s channel=%s: %v", env.UserID, env.Channel, err)
		}
	}
}

func (s *FanoutService) isOnline(userID uuid.UUID) bool {
	if s.pusher == nil {
		return false
	}
	return s.pusher.IsOnline(userID)
}

func (s *FanoutService) recoverPanic(eventType string) {
	if r := recover(); r != nil && s.log != nil {
		s.log.Errorf("fanout panic recovered: event=%s: %v", eventType, r)
	}
}
