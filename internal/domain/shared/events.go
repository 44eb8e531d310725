package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. The first group is the inbound feed produced by the
// learning application; the second group is emitted by the engine itself.
const (
	// Inbound activity feed
	EventXPEarned           EventType = "progress.xp_earned"
	EventLessonCompleted    EventType = "progress.lesson_completed"
	EventChallengeCompleted EventType = "progress.challenge_completed"
	EventComboXPEarned      EventType = "progress.combo_xp_earned"

	// Engine events
	EventQuestCompleted EventType = "quest.completed"
	EventRewardClaimed  EventType = "reward.claimed"
	EventStreakUpdated  EventType = "streak.updated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for logging.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Inbound activity events
// ═══════════════════════════════════════════════════════════════════════════

// XPEarnedEvent is emitted by the learning application whenever XP is awarded.
type XPEarnedEvent struct {
	BaseEvent
	UserID UserID `json:"user_id"`
	Amount int    `json:"amount"`
	Source string `json:"source,omitempty"`
}

// Payload implements Event interface.
func (e XPEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID.String(),
		"amount":  e.Amount,
		"source":  e.Source,
	}
}

// NewXPEarnedEvent creates a new XPEarnedEvent.
func NewXPEarnedEvent(userID UserID, amount int, source string, at time.Time) XPEarnedEvent {
	return XPEarnedEvent{
		BaseEvent: NewBaseEvent(EventXPEarned, userID.String(), at),
		UserID:    userID,
		Amount:    amount,
		Source:    source,
	}
}

// LessonCompletedEvent is emitted when a user finishes a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	UserID          UserID   `json:"user_id"`
	Accuracy        Accuracy `json:"accuracy"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID.String(),
		"accuracy":         int(e.Accuracy),
		"duration_minutes": e.DurationMinutes,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID UserID, accuracy Accuracy, durationMinutes int, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:       NewBaseEvent(EventLessonCompleted, userID.String(), at),
		UserID:          userID,
		Accuracy:        accuracy,
		DurationMinutes: durationMinutes,
	}
}

// ChallengeCompletedEvent is emitted when a user finishes a typed challenge.
type ChallengeCompletedEvent struct {
	BaseEvent
	UserID        UserID   `json:"user_id"`
	ChallengeType string   `json:"challenge_type"`
	Accuracy      Accuracy `json:"accuracy"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID.String(),
		"challenge_type": e.ChallengeType,
		"accuracy":       int(e.Accuracy),
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID UserID, challengeType string, accuracy Accuracy, at time.Time) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:     NewBaseEvent(EventChallengeCompleted, userID.String(), at),
		UserID:        userID,
		ChallengeType: challengeType,
		Accuracy:      accuracy,
	}
}

// ComboXPEarnedEvent is emitted when XP was earned through an answer combo.
type ComboXPEarnedEvent struct {
	BaseEvent
	UserID UserID `json:"user_id"`
	Amount int    `json:"amount"`
}

// Payload implements Event interface.
func (e ComboXPEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID.String(),
		"amount":  e.Amount,
	}
}

// NewComboXPEarnedEvent creates a new ComboXPEarnedEvent.
func NewComboXPEarnedEvent(userID UserID, amount int, at time.Time) ComboXPEarnedEvent {
	return ComboXPEarnedEvent{
		BaseEvent: NewBaseEvent(EventComboXPEarned, userID.String(), at),
		UserID:    userID,
		Amount:    amount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Engine events
// ═══════════════════════════════════════════════════════════════════════════

// QuestCompletedEvent is emitted exactly once per quest instance, by the call
// that moved it from IN_PROGRESS to COMPLETED.
type QuestCompletedEvent struct {
	BaseEvent
	UserID     UserID `json:"user_id"`
	InstanceID string `json:"instance_id"`
	QuestType  string `json:"quest_type"`
	Date       string `json:"date"`
}

// Payload implements Event interface.
func (e QuestCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID.String(),
		"instance_id": e.InstanceID,
		"quest_type":  e.QuestType,
		"date":        e.Date,
	}
}

// NewQuestCompletedEvent creates a new QuestCompletedEvent.
func NewQuestCompletedEvent(userID UserID, instanceID, questType, date string, at time.Time) QuestCompletedEvent {
	return QuestCompletedEvent{
		BaseEvent:  NewBaseEvent(EventQuestCompleted, instanceID, at),
		UserID:     userID,
		InstanceID: instanceID,
		QuestType:  questType,
		Date:       date,
	}
}

// RewardClaimedEvent is emitted after a successful claim.
type RewardClaimedEvent struct {
	BaseEvent
	UserID   UserID `json:"user_id"`
	Kind     string `json:"kind"`
	ObjectID string `json:"object_id"`
	XP       int    `json:"xp"`
	Gems     int    `json:"gems"`
}

// Payload implements Event interface.
func (e RewardClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID.String(),
		"kind":      e.Kind,
		"object_id": e.ObjectID,
		"xp":        e.XP,
		"gems":      e.Gems,
	}
}

// NewRewardClaimedEvent creates a new RewardClaimedEvent.
func NewRewardClaimedEvent(userID UserID, kind, objectID string, reward Reward, at time.Time) RewardClaimedEvent {
	return RewardClaimedEvent{
		BaseEvent: NewBaseEvent(EventRewardClaimed, objectID, at),
		UserID:    userID,
		Kind:      kind,
		ObjectID:  objectID,
		XP:        reward.XP,
		Gems:      reward.Gems,
	}
}

// StreakUpdatedEvent is emitted when a new active day extends or restarts a streak.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID  UserID `json:"user_id"`
	Current int    `json:"current"`
	Longest int    `json:"longest"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID.String(),
		"current": e.Current,
		"longest": e.Longest,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID UserID, current, longest int, at time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID.String(), at),
		UserID:    userID,
		Current:   current,
		Longest:   longest,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EncodeEvent wraps an event into an envelope with the given ID.
func EncodeEvent(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}
	env := EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if base, ok := baseOf(event); ok {
		env.Version = base.Version
		env.CorrelationID = base.CorrelationID
	}
	return env, nil
}

func baseOf(event Event) (BaseEvent, bool) {
	type based interface{ base() BaseEvent }
	if b, ok := event.(based); ok {
		return b.base(), true
	}
	return BaseEvent{}, false
}

func (e BaseEvent) base() BaseEvent { return e }

// DecodeEvent restores a concrete event from its envelope.
func DecodeEvent(env EventEnvelope) (Event, error) {
	var target Event
	switch env.Type {
	case EventXPEarned:
		var e XPEarnedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		target = e
	case EventLessonCompleted:
		var e LessonCompletedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		target = e
	case EventChallengeCompleted:
		var e ChallengeCompletedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		target = e
	case EventComboXPEarned:
		var e ComboXPEarnedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		target = e
	case EventQuestCompleted:
		var e QuestCompletedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		target = e
	case EventRewardClaimed:
		var e RewardClaimedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		target = e
	case EventStreakUpdated:
		var e StreakUpdatedEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		target = e
	default:
		return nil, fmt.Errorf("unknown event type %q: %w", env.Type, ErrInvalidInput)
	}
	return target, nil
}

// EventHandler handles a single event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
// Producers only see EventPublisher; consumers only see EventSubscriber.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
