package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

type JobStatus string

const (
	JOB_STATUS_PENDING   JobStatus = "pending"
	JOB_STATUS_RUNNING   JobStatus = "running"
	JOB_STATUS_COMPLETED JobStatus = "completed"
	JOB_STATUS_FAILED    JobStatus = "failed"
	JOB_STATUS_CANCELLED JobStatus = "cancelled"
)

type JobKind string

const (
	JOB_KIND_OUTLINE JobKind = "outline"
	JOB_KIND_DRAFT   JobKind = "draft"
	JOB_KIND_REWRITE JobKind = "rewrite"
	JOB_KIND_CAPTION JobKind = "caption"
)

func (k JobKind) Valid() bool {
	switch k {
	case JOB_KIND_OUTLINE, JOB_KIND_DRAFT, JOB_KIND_REWRITE, JOB_KIND_CAPTION:
		return true
	}
	return false
}

// GENERATION_MAX_RETRIES 任务级重试上限，retry_count 达到该值后 failed 即为终态
const GENERATION_MAX_RETRIES = 3

var ErrInvalidTransition = errors.New("invalid job status transition")

// jobTransitions 目标状态 -> 允许的源状态
var jobTransitions = map[JobStatus][]JobStatus{
	JOB_STATUS_RUNNING:   {JOB_STATUS_PENDING, JOB_STATUS_FAILED},
	JOB_STATUS_COMPLETED: {JOB_STATUS_RUNNING},
	JOB_STATUS_FAILED:    {JOB_STATUS_RUNNING},
	JOB_STATUS_CANCELLED: {JOB_STATUS_PENDING, JOB_STATUS_RUNNING},
}

// TransitionSources 返回可以迁移到 to 的源状态集合，存储层用它做条件更新
func TransitionSources(to JobStatus) []JobStatus {
	return jobTransitions[to]
}

func CanTransition(from, to JobStatus) bool {
	for _, v := range jobTransitions[to] {
		if v == from {
			return true
		}
	}
	return false
}

type GenerationJob struct {
	ID             string    `json:"id" db:"id"`
	ContentID      string    `json:"content_id" db:"content_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	WorkspaceID    string    `json:"workspace_id" db:"workspace_id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Kind           JobKind   `json:"kind" db:"kind"`
	Status         JobStatus `json:"status" db:"status"`
	Params         JSONMap   `json:"params" db:"params"`
	Result         JSONMap   `json:"result" db:"result"`
	ErrorMessage   string    `json:"error_message" db:"error_message"`
	RetryCount     int       `json:"retry_count" db:"retry_count"`
	StartedAt      int64     `json:"started_at" db:"started_at"`
	CompletedAt    int64     `json:"completed_at" db:"completed_at"`
	CreatedAt      int64     `json:"created_at" db:"created_at"`
	UpdatedAt      int64     `json:"updated_at" db:"updated_at"`
}

func (j *GenerationJob) IsTerminal() bool {
	switch j.Status {
	case JOB_STATUS_COMPLETED, JOB_STATUS_CANCELLED:
		return true
	case JOB_STATUS_FAILED:
		return !j.CanRetry()
	}
	return false
}

// CanRetry 只有 failed 且重试次数未达上限时才允许再次进入 running
func (j *GenerationJob) CanRetry() bool {
	return j.Status == JOB_STATUS_FAILED && j.RetryCount < GENERATION_MAX_RETRIES
}

// GenerationParams 调用方传入的生成参数
type GenerationParams struct {
	Kind                   JobKind `json:"kind"`
	Topic                  string  `json:"topic,omitempty"`
	Tone                   string  `json:"tone,omitempty"`
	Audience               string  `json:"audience,omitempty"`
	Keywords               string  `json:"keywords,omitempty"`
	MinWords               int     `json:"min_words,omitempty"`
	AdditionalInstructions string  `json:"additional_instructions,omitempty"`
	Model                  string  `json:"model,omitempty"`
}

func (p GenerationParams) ToMap() JSONMap {
	raw, _ := json.Marshal(p)
	m := JSONMap{}
	_ = json.Unmarshal(raw, &m)
	return m
}

func GenerationParamsFromMap(m JSONMap) (GenerationParams, error) {
	var p GenerationParams
	raw, err := json.Marshal(m)
	if err != nil {
		return p, err
	}
	if err = json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("failed to decode generation params, %w", err)
	}
	return p, nil
}

// GenerationResult completed 时写入 job.result
type GenerationResult struct {
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	Tokens        int64  `json:"tokens"`
	Cost          Money  `json:"cost"`
}

func (r GenerationResult) ToMap() JSONMap {
	return JSONMap{
		"version_id":     r.VersionID,
		"version_number": r.VersionNumber,
		"tokens":         r.Tokens,
		"cost":           r.Cost.InexactFloat64(),
	}
}
