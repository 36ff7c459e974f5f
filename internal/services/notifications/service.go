// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
)

const (
	defaultQueueSize   = 100
	defaultWorkers     = 2
	defaultSendRetries = 3

	// identical quota warnings for a scope are sent at most once per window
	quotaRepeatWindow = 24 * time.Hour
)

type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type Event struct {
	Type         EventType
	Scope        remote.Scope
	JobKey       string
	TriggeredBy  string
	Mode         models.ScanMode
	Report       *models.ScanReport
	Quota        *models.QuotaStatus
	ErrorMessage string
}

// Sender delivers rendered text to a scope's chat.
type Sender interface {
	SendGroupMessage(ctx context.Context, scope remote.Scope, text string) error
}

// LogSender writes messages to the log instead of a chat.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendGroupMessage(_ context.Context, scope remote.Scope, text string) error {
	s.Logger.Info().Int64("scope", int64(scope)).Msg(text)
	return nil
}

type Service struct {
	sender     Sender
	eventTypes []string
	logger     zerolog.Logger
	queue      chan Event
	startOnce  sync.Once
	retryDelay time.Duration

	mu   sync.Mutex
	sent map[remote.Scope]sentDigest
	now  func() time.Time
}

type sentDigest struct {
	sum uint64
	at  time.Time
}

// NewService returns a queueing notifier. eventTypes limits delivery to the listed
// event types; an empty list delivers everything.
func NewService(sender Sender, eventTypes []string, logger zerolog.Logger) *Service {
	if sender == nil {
		return nil
	}

	return &Service{
		sender:     sender,
		eventTypes: eventTypes,
		logger:     logger,
		queue:      make(chan Event, defaultQueueSize),
		retryDelay: time.Second,
		sent:       make(map[remote.Scope]sentDigest),
		now:        time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}

	s.startOnce.Do(func() {
		for range defaultWorkers {
			go s.worker(ctx)
		}
	})
}

func (s *Service) Notify(ctx context.Context, event Event) {
	if s == nil || s.sender == nil {
		return
	}

	if s.queue == nil {
		go func() {
			if err := s.Deliver(context.WithoutCancel(ctx), event); err != nil {
				s.logger.Error().Err(err).Str("event", string(event.Type)).Msg("notifications: send failed")
			}
		}()
		return
	}

	select {
	case s.queue <- event:
	default:
		s.logger.Warn().Str("event", string(event.Type)).Msg("notifications: queue full, dropping event")
	}
}

// Inline returns a Notifier that delivers each event before Notify returns.
// Commands that exit right after their work use it since no worker drains the queue.
func (s *Service) Inline() Notifier {
	return inlineNotifier{svc: s}
}

type inlineNotifier struct {
	svc *Service
}

func (n inlineNotifier) Notify(ctx context.Context, event Event) {
	if n.svc == nil {
		return
	}
	if err := n.svc.Deliver(context.WithoutCancel(ctx), event); err != nil {
		n.svc.logger.Error().Err(err).Int64("scope", int64(event.Scope)).Str("event", string(event.Type)).
			Msg("notifications: send failed")
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.queue:
			if err := s.Deliver(ctx, event); err != nil {
				s.logger.Error().Err(err).Int64("scope", int64(event.Scope)).Str("event", string(event.Type)).
					Msg("notifications: send failed")
			}
		}
	}
}

// Deliver renders and sends one event synchronously.
func (s *Service) Deliver(ctx context.Context, event Event) error {
	if s == nil || s.sender == nil {
		return errors.New("notifications: no sender configured")
	}
	if !allowsEvent(s.eventTypes, event.Type) {
		return nil
	}

	message := FormatEvent(event)
	if strings.TrimSpace(message) == "" {
		return nil
	}

	if event.Type == EventQuotaWarning && s.repeated(event.Scope, message) {
		s.logger.Debug().Int64("scope", int64(event.Scope)).Msg("notifications: skipping repeated quota warning")
		return nil
	}

	err := retry.Do(
		func() error {
			return s.sender.SendGroupMessage(ctx, event.Scope, message)
		},
		retry.Context(ctx),
		retry.Attempts(defaultSendRetries),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil && event.Type == EventQuotaWarning {
		s.remember(event.Scope, message)
	}
	return err
}

func (s *Service) repeated(scope remote.Scope, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.sent[scope]
	return ok && last.sum == xxhash.Sum64String(message) && s.clock().Sub(last.at) < quotaRepeatWindow
}

func (s *Service) remember(scope remote.Scope, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[remote.Scope]sentDigest)
	}
	s.sent[scope] = sentDigest{sum: xxhash.Sum64String(message), at: s.clock()}
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func allowsEvent(eventTypes []string, eventType EventType) bool {
	if len(eventTypes) == 0 {
		return true
	}

	return slices.Contains(eventTypes, string(eventType))
}
