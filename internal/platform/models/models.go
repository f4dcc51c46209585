package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

type Tenant struct {
	TenantID  int64  `json:"tenantId"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	UserID       int64  `json:"userId"`
	TenantID     int64  `json:"tenantId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	CreatedAt    int64  `json:"createdAt"`
	DeletedAt    *int64 `json:"-"`
}

// IsAdmin reports whether the user may manage projects and integrations.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleOwner
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleOwner
}

type RecordingState string

const (
	RecordingGreen  RecordingState = "green"
	RecordingYellow RecordingState = "yellow"
	RecordingRed    RecordingState = "red"
)

type Project struct {
	ProjectID              int64          `json:"projectId"`
	TenantID               int64          `json:"-"`
	Name                   string         `json:"name"`
	ProjectKey             string         `json:"projectKey"`
	SaveRequestPayloads    bool           `json:"saveRequestPayloads"`
	GDPR                   GDPR           `json:"gdpr,omitempty"`
	SampleRate             int            `json:"sampleRate"`
	CreatedAt              int64          `json:"createdAt"`
	FirstRecordedSessionAt *int64         `json:"firstRecordedSessionAt,omitempty"`
	SessionsLastCheckAt    *int64         `json:"-"`
	LastRecordedSessionAt  *int64         `json:"lastRecordedSessionAt,omitempty"`
	Recorded               *bool          `json:"recorded,omitempty"`
	Status                 RecordingState `json:"status,omitempty"`
}

// DefaultGDPR is the privacy document every new project starts with.
func DefaultGDPR() GDPR {
	return GDPR{
		"maskEmails":       true,
		"sampleRate":       33,
		"maskNumbers":      false,
		"defaultInputMode": "plain",
	}
}

// GDPR holds a project's privacy flags as a free-form JSON object.
type GDPR map[string]interface{}

// Merge overlays patch on g: keys in patch replace keys in g, other keys
// of g are kept.
func (g GDPR) Merge(patch GDPR) GDPR {
	merged := make(GDPR, len(g)+len(patch))
	for k, v := range g {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// Value implements the driver.Valuer interface for GDPR
func (g GDPR) Value() (driver.Value, error) {
	if g == nil {
		return "{}", nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for GDPR
func (g *GDPR) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		*g = GDPR{}
		return nil
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, g)
}

type AssistRecord struct {
	RecordID  int64  `json:"recordId"`
	ProjectID int64  `json:"-"`
	UserID    int64  `json:"userId"`
	SessionID *int64 `json:"sessionId"`
	Name      string `json:"name"`
	Duration  int64  `json:"duration"`
	CreatedBy string `json:"createdBy"`
	CreatedAt int64  `json:"createdAt"`
	FileKey   string `json:"-"`
	URL       string `json:"URL,omitempty"`
}
