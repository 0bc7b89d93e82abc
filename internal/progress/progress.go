// Package progress tracks long-running activities, searches in particular,
// and broadcasts their state to connected WebSocket clients.
package progress

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ActivityType identifies the type of activity being tracked.
type ActivityType string

const (
	ActivityTypeSearch      ActivityType = "search"
	ActivityTypeVNDBLookup  ActivityType = "vndb-lookup"
	ActivityTypeTranslation ActivityType = "translation"
)

// Status represents the current state of an activity.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Activity represents a trackable activity with progress.
type Activity struct {
	ID          string         `json:"id"`
	Type        ActivityType   `json:"type"`
	Title       string         `json:"title"`
	Subtitle    string         `json:"subtitle"`
	Progress    int            `json:"progress"` // 0-100, -1 for indeterminate
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt"`
	Metadata    map[string]any `json:"metadata"`
}

// EventType identifies the type of progress event.
type EventType string

const (
	EventTypeStarted   EventType = "progress:started"
	EventTypeUpdate    EventType = "progress:update"
	EventTypeCompleted EventType = "progress:completed"
	EventTypeError     EventType = "progress:error"
	EventTypeCancelled EventType = "progress:cancelled"
)

// Broadcaster pushes messages to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// Manager tracks and broadcasts progress for all activities.
type Manager struct {
	hub        Broadcaster
	activities map[string]*Activity
	linger     time.Duration
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewManager creates a new progress manager. hub may be nil.
func NewManager(hub Broadcaster, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:        hub,
		activities: make(map[string]*Activity),
		linger:     5 * time.Second,
		logger:     logger.With().Str("component", "progress").Logger(),
	}
}

// SetLinger sets how long finished activities stay listed.
func (m *Manager) SetLinger(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linger = d
}

// StartActivity creates and starts tracking a new activity.
func (m *Manager) StartActivity(id string, activityType ActivityType, title string) *Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity := &Activity{
		ID:        id,
		Type:      activityType,
		Title:     title,
		Subtitle:  "Starting...",
		Progress:  -1,
		Status:    StatusInProgress,
		StartedAt: time.Now(),
		Metadata:  make(map[string]any),
	}

	m.activities[id] = activity
	m.broadcast(EventTypeStarted, activity)

	m.logger.Debug().
		Str("id", id).
		Str("type", string(activityType)).
		Str("title", title).
		Msg("Activity started")

	return activity
}

// UpdateActivity updates an existing activity's progress.
func (m *Manager) UpdateActivity(id string, subtitle string, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists || activity.Status != StatusInProgress {
		return
	}

	activity.Subtitle = subtitle
	activity.Progress = progress

	m.broadcast(EventTypeUpdate, activity)
}

// UpdateActivityMetadata updates an activity's metadata.
func (m *Manager) UpdateActivityMetadata(id string, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if activity, exists := m.activities[id]; exists {
		activity.Metadata[key] = value
	}
}

// CompleteActivity marks an activity as completed.
func (m *Manager) CompleteActivity(id string, subtitle string) {
	m.finish(id, StatusCompleted, subtitle, EventTypeCompleted)
}

// FailActivity marks an activity as failed.
func (m *Manager) FailActivity(id string, errorMsg string) {
	m.finish(id, StatusFailed, errorMsg, EventTypeError)
}

// CancelActivity marks an activity as cancelled.
func (m *Manager) CancelActivity(id string) {
	m.finish(id, StatusCancelled, "Cancelled", EventTypeCancelled)
}

func (m *Manager) finish(id string, status Status, subtitle string, event EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists || activity.Status != StatusInProgress {
		return
	}

	now := time.Now()
	activity.Status = status
	activity.Subtitle = subtitle
	activity.CompletedAt = &now
	switch status {
	case StatusCompleted:
		activity.Progress = 100
	case StatusFailed:
		activity.Metadata["error"] = subtitle
	}

	m.broadcast(event, activity)

	if m.linger <= 0 {
		delete(m.activities, id)
	} else {
		time.AfterFunc(m.linger, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if a, ok := m.activities[id]; ok && a == activity {
				delete(m.activities, id)
			}
		})
	}

	m.logger.Debug().
		Str("id", id).
		Str("title", activity.Title).
		Str("status", string(status)).
		Msg("Activity finished")
}

// GetActivity returns a copy of an activity by ID.
func (m *Manager) GetActivity(id string) (Activity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	activity, ok := m.activities[id]
	if !ok {
		return Activity{}, false
	}
	return activity.snapshot(), true
}

// GetActivitiesByType returns copies of all activities of a type, oldest first.
func (m *Manager) GetActivitiesByType(activityType ActivityType) []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Activity, 0)
	for _, activity := range m.activities {
		if activityType == "" || activity.Type == activityType {
			result = append(result, activity.snapshot())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.Before(result[j].StartedAt) })
	return result
}

// GetAllActivities returns copies of all tracked activities.
func (m *Manager) GetAllActivities() []Activity {
	return m.GetActivitiesByType("")
}

func (a *Activity) snapshot() Activity {
	c := *a
	c.Metadata = make(map[string]any, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// broadcast must be called with m.mu held.
func (m *Manager) broadcast(eventType EventType, activity *Activity) {
	if m.hub == nil {
		return
	}

	if err := m.hub.Broadcast(string(eventType), activity.snapshot()); err != nil {
		m.logger.Debug().Err(err).Str("event", string(eventType)).Msg("dropped progress broadcast")
	}
}

// ActivityBuilder provides a fluent interface for creating and managing activities.
type ActivityBuilder struct {
	manager *Manager
	id      string
}

// NewActivityBuilder creates a new activity builder.
func (m *Manager) NewActivityBuilder(id string, activityType ActivityType, title string) *ActivityBuilder {
	m.StartActivity(id, activityType, title)
	return &ActivityBuilder{manager: m, id: id}
}

// Update updates both subtitle and progress.
func (b *ActivityBuilder) Update(subtitle string, progress int) *ActivityBuilder {
	b.manager.UpdateActivity(b.id, subtitle, progress)
	return b
}

// SetMetadata adds metadata to the activity.
func (b *ActivityBuilder) SetMetadata(key string, value any) *ActivityBuilder {
	b.manager.UpdateActivityMetadata(b.id, key, value)
	return b
}

// Complete marks the activity as completed.
func (b *ActivityBuilder) Complete(subtitle string) {
	b.manager.CompleteActivity(b.id, subtitle)
}

// Fail marks the activity as failed.
func (b *ActivityBuilder) Fail(errorMsg string) {
	b.manager.FailActivity(b.id, errorMsg)
}

// Cancel marks the activity as cancelled.
func (b *ActivityBuilder) Cancel() {
	b.manager.CancelActivity(b.id)
}

// ID returns the activity's ID.
func (b *ActivityBuilder) ID() string {
	return b.id
}

// Percent converts a completed/total pair to 0-100, or -1 when total is unknown.
func Percent(completed, total int) int {
	if total <= 0 {
		return -1
	}
	if completed >= total {
		return 100
	}
	if completed <= 0 {
		return 0
	}
	return completed * 100 / total
}
