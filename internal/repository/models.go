package repository

import (
	"encoding/json"
	"time"

	"github.com/jaykayhq/insight-pipeline/internal/model"
)

// TaskModel GORM 模型 - 对应 agent_tasks 表（用于 AutoMigrate）
type TaskModel struct {
	ID        string          `gorm:"primaryKey;column:id;type:text"`
	Seq       int64           `gorm:"column:seq;autoIncrement;uniqueIndex;index:idx_agent_tasks_claim,priority:3"`
	TaskType  string          `gorm:"column:task_type;type:text;not null;index:idx_agent_tasks_claim,priority:1"`
	Status    string          `gorm:"column:status;type:text;not null;default:pending;index:idx_agent_tasks_claim,priority:2"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null;default:'{}'"`
	Result    json.RawMessage `gorm:"column:result;type:jsonb"`
	LastError *string         `gorm:"column:last_error;type:text"`
	ClaimedAt *time.Time      `gorm:"column:claimed_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName 指定表名
func (TaskModel) TableName() string { return "agent_tasks" }

// ToTask 转换为 Task 实体
func (m *TaskModel) ToTask() Task {
	t := Task{
		ID:        m.ID,
		TaskType:  m.TaskType,
		Status:    model.TaskStatus(m.Status),
		Payload:   m.Payload,
		Result:    m.Result,
		ClaimedAt: m.ClaimedAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.LastError != nil {
		t.LastError = *m.LastError
	}
	return t
}

// SourceModel GORM 模型 - 对应 data_sources 表
type SourceModel struct {
	Name                   string          `gorm:"primaryKey;column:name;type:text"`
	RefreshIntervalSeconds int64           `gorm:"column:refresh_interval_seconds;not null;default:0"`
	DefaultPayload         json.RawMessage `gorm:"column:default_payload;type:jsonb;not null;default:'{}'"`
	CoolDownUntil          *time.Time      `gorm:"column:cool_down_until"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName 指定表名
func (SourceModel) TableName() string { return "data_sources" }

// ToSource 转换为 Source 实体
func (m *SourceModel) ToSource() Source {
	return Source{
		Name:            m.Name,
		RefreshInterval: time.Duration(m.RefreshIntervalSeconds) * time.Second,
		DefaultPayload:  m.DefaultPayload,
		CoolDownUntil:   m.CoolDownUntil,
	}
}

// SourceToModel 从 Source 实体创建模型
func SourceToModel(s Source) SourceModel {
	return SourceModel{
		Name:                   s.Name,
		RefreshIntervalSeconds: int64(s.RefreshInterval / time.Second),
		DefaultPayload:         emptyPayload(s.DefaultPayload),
		CoolDownUntil:          s.CoolDownUntil,
	}
}

// TrendModel GORM 模型 - 对应 x_trends 表
type TrendModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Topic       string    `gorm:"column:topic;type:text;not null"`
	TweetVolume *int64    `gorm:"column:tweet_volume"`
	WOEID       int64     `gorm:"column:x_woeid;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (TrendModel) TableName() string { return "x_trends" }

// InsightModel GORM 模型 - 对应 actionable_insights 表
type InsightModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	InsightText string    `gorm:"column:insight_text;type:text;not null"`
	TaskID      *string   `gorm:"column:task_id;type:text;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (InsightModel) TableName() string { return "actionable_insights" }

// AllModels 返回需要迁移的全部模型
func AllModels() []any {
	return []any{&TaskModel{}, &SourceModel{}, &TrendModel{}, &InsightModel{}}
}
