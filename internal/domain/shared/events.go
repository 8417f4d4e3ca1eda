package shared

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one is published after the change it describes
// has been committed.
const (
	// Progress events
	EventCourseEnrolled  EventType = "course.enrolled"
	EventModuleOpened    EventType = "module.opened"
	EventModuleCompleted EventType = "module.completed"
	EventCourseCompleted EventType = "course.completed"

	// Wallet events
	EventRewardGranted     EventType = "reward.granted"
	EventDailyBonusGranted EventType = "wallet.daily_bonus"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
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

// NewBaseEvent creates a new base event stamped with at.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// EnrollmentAggregateID is the aggregate key for per-(user, course) events.
func EnrollmentAggregateID(userID UserID, courseID CourseID) string {
	return fmt.Sprintf("enrollment:%d:%d", userID, courseID)
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseEnrolledEvent is emitted when a user enrolls in a course. Session
// trackers treat it as the signal to reset their baseline and start timing.
type CourseEnrolledEvent struct {
	BaseEvent
	UserID   UserID   `json:"user_id"`
	CourseID CourseID `json:"course_id"`
	Paid     int64    `json:"paid"`
}

// NewCourseEnrolledEvent creates a new CourseEnrolledEvent.
func NewCourseEnrolledEvent(userID UserID, courseID CourseID, paid int64, at time.Time) CourseEnrolledEvent {
	return CourseEnrolledEvent{
		BaseEvent: NewBaseEvent(EventCourseEnrolled, EnrollmentAggregateID(userID, courseID), at),
		UserID:    userID,
		CourseID:  courseID,
		Paid:      paid,
	}
}

// Payload implements Event interface.
func (e CourseEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   int64(e.UserID),
		"course_id": int64(e.CourseID),
		"paid":      e.Paid,
	}
}

// ModuleOpenedEvent is emitted when a bonus module is bought.
type ModuleOpenedEvent struct {
	BaseEvent
	UserID   UserID   `json:"user_id"`
	CourseID CourseID `json:"course_id"`
	ModuleID ModuleID `json:"module_id"`
	Cost     int64    `json:"cost"`
}

// NewModuleOpenedEvent creates a new ModuleOpenedEvent.
func NewModuleOpenedEvent(userID UserID, courseID CourseID, moduleID ModuleID, cost int64, at time.Time) ModuleOpenedEvent {
	return ModuleOpenedEvent{
		BaseEvent: NewBaseEvent(EventModuleOpened, EnrollmentAggregateID(userID, courseID), at),
		UserID:    userID,
		CourseID:  courseID,
		ModuleID:  moduleID,
		Cost:      cost,
	}
}

// Payload implements Event interface.
func (e ModuleOpenedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   int64(e.UserID),
		"course_id": int64(e.CourseID),
		"module_id": int64(e.ModuleID),
		"cost":      e.Cost,
	}
}

// ModuleCompletedEvent is emitted the first time a module is completed.
type ModuleCompletedEvent struct {
	BaseEvent
	UserID    UserID   `json:"user_id"`
	CourseID  CourseID `json:"course_id"`
	ModuleID  ModuleID `json:"module_id"`
	Completed int      `json:"completed"`
	Required  int      `json:"required"`
}

// NewModuleCompletedEvent creates a new ModuleCompletedEvent.
func NewModuleCompletedEvent(userID UserID, courseID CourseID, moduleID ModuleID, completed, required int, at time.Time) ModuleCompletedEvent {
	return ModuleCompletedEvent{
		BaseEvent: NewBaseEvent(EventModuleCompleted, EnrollmentAggregateID(userID, courseID), at),
		UserID:    userID,
		CourseID:  courseID,
		ModuleID:  moduleID,
		Completed: completed,
		Required:  required,
	}
}

// Payload implements Event interface.
func (e ModuleCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   int64(e.UserID),
		"course_id": int64(e.CourseID),
		"module_id": int64(e.ModuleID),
		"completed": e.Completed,
		"required":  e.Required,
	}
}

// CourseCompletedEvent is emitted once, when the last normal module of a
// course is completed.
type CourseCompletedEvent struct {
	BaseEvent
	UserID    UserID   `json:"user_id"`
	CourseID  CourseID `json:"course_id"`
	TimeSpent int64    `json:"time_spent"`
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
func NewCourseCompletedEvent(userID UserID, courseID CourseID, timeSpent int64, at time.Time) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent: NewBaseEvent(EventCourseCompleted, EnrollmentAggregateID(userID, courseID), at),
		UserID:    userID,
		CourseID:  courseID,
		TimeSpent: timeSpent,
	}
}

// Payload implements Event interface.
func (e CourseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    int64(e.UserID),
		"course_id":  int64(e.CourseID),
		"time_spent": e.TimeSpent,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Wallet Events
// ═══════════════════════════════════════════════════════════════════════════

// RewardGrantedEvent is emitted for every one-time coin reward.
type RewardGrantedEvent struct {
	BaseEvent
	UserID   UserID   `json:"user_id"`
	CourseID CourseID `json:"course_id,omitempty"`
	ModuleID ModuleID `json:"module_id,omitempty"`
	Reason   string   `json:"reason"`
	Amount   int64    `json:"amount"`
	Balance  int64    `json:"balance"`
}

// NewRewardGrantedEvent creates a new RewardGrantedEvent.
func NewRewardGrantedEvent(userID UserID, courseID CourseID, moduleID ModuleID, reason string, amount, balance int64, at time.Time) RewardGrantedEvent {
	return RewardGrantedEvent{
		BaseEvent: NewBaseEvent(EventRewardGranted, "wallet:"+userID.String(), at),
		UserID:    userID,
		CourseID:  courseID,
		ModuleID:  moduleID,
		Reason:    reason,
		Amount:    amount,
		Balance:   balance,
	}
}

// Payload implements Event interface.
func (e RewardGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   int64(e.UserID),
		"course_id": int64(e.CourseID),
		"module_id": int64(e.ModuleID),
		"reason":    e.Reason,
		"amount":    e.Amount,
		"balance":   e.Balance,
	}
}

// DailyBonusGrantedEvent is emitted when the daily login bonus is credited.
type DailyBonusGrantedEvent struct {
	BaseEvent
	UserID  UserID `json:"user_id"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

// NewDailyBonusGrantedEvent creates a new DailyBonusGrantedEvent.
func NewDailyBonusGrantedEvent(userID UserID, amount, balance int64, at time.Time) DailyBonusGrantedEvent {
	return DailyBonusGrantedEvent{
		BaseEvent: NewBaseEvent(EventDailyBonusGranted, "wallet:"+userID.String(), at),
		UserID:    userID,
		Amount:    amount,
		Balance:   balance,
	}
}

// Payload implements Event interface.
func (e DailyBonusGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": int64(e.UserID),
		"amount":  e.Amount,
		"balance": e.Balance,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
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
func (NopPublisher) Publish(Event) error { return nil }
