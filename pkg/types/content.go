package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type ContentStatus string

const (
	CONTENT_STATUS_DRAFT       ContentStatus = "draft"
	CONTENT_STATUS_IN_PROGRESS ContentStatus = "in_progress"
	CONTENT_STATUS_REVIEW      ContentStatus = "review"
	CONTENT_STATUS_APPROVED    ContentStatus = "approved"
	CONTENT_STATUS_REJECTED    ContentStatus = "rejected"
)

// JSONMap 以 JSON 文本存储的键值对
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements the sql.Scanner interface.
func (m *JSONMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("types: cannot convert %T to JSONMap", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	res := JSONMap{}
	if err := json.Unmarshal(raw, &res); err != nil {
		return err
	}
	*m = res
	return nil
}

// StringMap PII 告警等字符串映射
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (m *StringMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("types: cannot convert %T to StringMap", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	res := StringMap{}
	if err := json.Unmarshal(raw, &res); err != nil {
		return err
	}
	*m = res
	return nil
}

// Content 内容资源，生成任务只修改其中的部分字段
type Content struct {
	ID               string        `json:"id" db:"id"`
	ProjectID        string        `json:"project_id" db:"project_id"`
	WorkspaceID      string        `json:"workspace_id" db:"workspace_id"`
	OrganizationID   string        `json:"organization_id" db:"organization_id"`
	Title            string        `json:"title" db:"title"`
	Body             string        `json:"body" db:"body"`
	Status           ContentStatus `json:"status" db:"status"`
	WordCount        int           `json:"word_count" db:"word_count"`
	CurrentVersionID string        `json:"current_version_id" db:"current_version_id"`
	HasPII           bool          `json:"has_pii" db:"has_pii"`
	PIIWarnings      StringMap     `json:"pii_warnings" db:"pii_warnings"`
	CreatedBy        string        `json:"created_by" db:"created_by"`
	CreatedAt        int64         `json:"created_at" db:"created_at"`
	UpdatedAt        int64         `json:"updated_at" db:"updated_at"`
}

// ContentGenerated 生成成功后回写内容的字段
type ContentGenerated struct {
	Body             string
	WordCount        int
	CurrentVersionID string
	Status           ContentStatus
}

type ContentVersion struct {
	ID            string  `json:"id" db:"id"`
	ContentID     string  `json:"content_id" db:"content_id"`
	VersionNumber int     `json:"version_number" db:"version_number"`
	Title         string  `json:"title" db:"title"`
	Body          string  `json:"body" db:"body"`
	WordCount     int     `json:"word_count" db:"word_count"`
	Metadata      JSONMap `json:"metadata" db:"metadata"`
	JobID         string  `json:"job_id" db:"job_id"`
	CreatedBy     string  `json:"created_by" db:"created_by"`
	CreatedAt     int64   `json:"created_at" db:"created_at"`
}

const AUDIT_ACTION_STATUS_CHANGED = "status_changed"

type AuditLog struct {
	ID        string        `json:"id" db:"id"`
	ContentID string        `json:"content_id" db:"content_id"`
	UserID    string        `json:"user_id" db:"user_id"`
	Action    string        `json:"action" db:"action"`
	OldStatus ContentStatus `json:"old_status" db:"old_status"`
	NewStatus ContentStatus `json:"new_status" db:"new_status"`
	Changes   JSONMap       `json:"changes" db:"changes"`
	Notes     string        `json:"notes" db:"notes"`
	CreatedAt int64         `json:"created_at" db:"created_at"`
}
