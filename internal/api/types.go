package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Activity type keys as emitted by the platform. The backend owns this enum;
// the console only needs the heartbeat key (noise filtering) and treats the
// rest as opaque labels.
const (
	TypeHeartbeat       = "heartbeat"
	TypeLogin           = "login"
	TypeMessageSent     = "message_sent"
	TypeMessageRead     = "message_read"
	TypeEntityCreated   = "entity_created"
	TypeEntityUpdated   = "entity_updated"
	TypeEntityDeleted   = "entity_deleted"
	TypeLinkCreated     = "link_created"
	TypeSearchPerformed = "search_performed"
	TypeSessionStarted  = "session_started"
	TypeSessionEnded    = "session_ended"
)

// Activity is a single recorded platform event. Immutable, created by the
// backend; read-only here.
type Activity struct {
	ActivityKey  string         `json:"activity_key"`
	ActivityType string         `json:"activity_type"`
	Actor        string         `json:"actor"`
	TargetType   string         `json:"target_type"`
	TargetKey    string         `json:"target_key"`
	ExtraData    map[string]any `json:"extra_data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TimelineBucket is one fixed-width interval of activity counts. On the wire
// the per-type counts sit next to "timestamp" and "total" as sibling keys:
//
//	{"timestamp": "2024-01-01T10:00:00Z", "total": 5, "message_sent": 3, "heartbeat": 2}
//
// so the type implements its own JSON codec rather than relying on tags.
type TimelineBucket struct {
	Timestamp time.Time
	Total     int
	Counts    map[string]int
}

// UnmarshalJSON decodes the flat wire form, collecting every numeric sibling
// of "timestamp"/"total" as a per-type count.
func (b *TimelineBucket) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.Counts = make(map[string]int)
	for key, val := range raw {
		switch key {
		case "timestamp":
			var ts string
			if err := json.Unmarshal(val, &ts); err != nil {
				return fmt.Errorf("timeline bucket timestamp: %w", err)
			}
			parsed, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return fmt.Errorf("timeline bucket timestamp %q: %w", ts, err)
			}
			b.Timestamp = parsed
		case "total":
			if err := json.Unmarshal(val, &b.Total); err != nil {
				return fmt.Errorf("timeline bucket total: %w", err)
			}
		default:
			var n int
			if err := json.Unmarshal(val, &n); err != nil {
				// Non-numeric extras are not counts; skip them.
				continue
			}
			b.Counts[key] = n
		}
	}

	return nil
}

// MarshalJSON emits the same flat form the backend uses, so buckets can be
// passed through to browsers unchanged.
func (b TimelineBucket) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(b.Counts)+2)
	for key, n := range b.Counts {
		flat[key] = n
	}
	flat["timestamp"] = b.Timestamp.UTC().Format(time.RFC3339)
	flat["total"] = b.Total
	return json.Marshal(flat)
}

// Count returns the count for one activity type, zero if absent.
func (b TimelineBucket) Count(activityType string) int {
	return b.Counts[activityType]
}

// SummaryResponse is the shape of activities.summary.
type SummaryResponse struct {
	Summary map[string]int `json:"summary"`
	Total   int            `json:"total"`
}

// TimelineResponse is the shape of activities.timeline.
type TimelineResponse struct {
	Timeline []TimelineBucket `json:"timeline"`
}

// ListResponse is the shape of activities.list.
type ListResponse struct {
	Activities []Activity `json:"activities"`
}

// User is a platform account as returned by the backend.
type User struct {
	UserKey     string    `json:"user_key"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	ClientKey   string    `json:"client_key"`
	IsGuest     bool      `json:"is_guest,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Team groups users under one client tenant.
type Team struct {
	TeamKey   string    `json:"team_key"`
	ClientKey string    `json:"client_key"`
	Name      string    `json:"name"`
	Members   []string  `json:"members,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientAccount is a tenant of the platform.
type ClientAccount struct {
	ClientKey string    `json:"client_key"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Persona is an agent persona configured for a tenant.
type Persona struct {
	PersonaKey   string    `json:"persona_key"`
	ClientKey    string    `json:"client_key"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AgentSession is one authenticated agent connection tracked by the backend.
type AgentSession struct {
	SessionKey string     `json:"session_key"`
	UserKey    string     `json:"user_key"`
	PersonaKey string     `json:"persona_key,omitempty"`
	Source     string     `json:"source,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// WorkSession is a tracked block of agent work time.
type WorkSession struct {
	WorkSessionKey string     `json:"work_session_key"`
	UserKey        string     `json:"user_key"`
	Title          string     `json:"title,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ActivityCount  int        `json:"activity_count,omitempty"`
}

// Message is one inbox message.
type Message struct {
	MessageKey string    `json:"message_key"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// LoginRequest carries credentials for auth.login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the shape of auth.login and auth.guest.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
