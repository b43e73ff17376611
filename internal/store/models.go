package store

import (
	"time"

	"github.com/maumercado/jobrunner-go/internal/task"
)

// User represents the users table. The bcrypt verifier is opaque to
// everything outside internal/auth.
type User struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Username       string    `gorm:"column:username;unique;not null"`
	HashedPassword string    `gorm:"column:hashed_password;not null"`
	TaskQuota      int       `gorm:"column:task_quota;not null;default:100"`
	IsAdmin        bool      `gorm:"column:is_admin;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}

// TaskModel represents the tasks table.
type TaskModel struct {
	ID                uint      `gorm:"column:id;primaryKey;autoIncrement"`
	InputData         string    `gorm:"column:input_data;type:text;not null"`
	Status            string    `gorm:"column:status;not null;default:'Pending'"`
	Result            *string   `gorm:"column:result;type:text"`
	OwnerID           uint      `gorm:"column:owner_id;index;not null"`
	Owner             *User     `gorm:"foreignKey:OwnerID;references:ID"`
	TaskType          string    `gorm:"column:task_type;not null;default:'text_processing'"`
	MaxExecutionTime  int       `gorm:"column:max_execution_time;not null;default:30"`
	SimulatedDuration int       `gorm:"column:simulated_duration;not null;default:5"`
	IsCancelled       bool      `gorm:"column:is_cancelled;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (TaskModel) TableName() string {
	return "tasks"
}

func (m *TaskModel) toTask() *task.Task {
	return &task.Task{
		ID:                m.ID,
		InputData:         m.InputData,
		Status:            task.Status(m.Status),
		Result:            m.Result,
		OwnerID:           m.OwnerID,
		TaskType:          m.TaskType,
		MaxExecutionTime:  m.MaxExecutionTime,
		SimulatedDuration: m.SimulatedDuration,
		IsCancelled:       m.IsCancelled,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func modelFromTask(t *task.Task) *TaskModel {
	return &TaskModel{
		ID:                t.ID,
		InputData:         t.InputData,
		Status:            t.Status.String(),
		Result:            t.Result,
		OwnerID:           t.OwnerID,
		TaskType:          t.TaskType,
		MaxExecutionTime:  t.MaxExecutionTime,
		SimulatedDuration: t.SimulatedDuration,
		IsCancelled:       t.IsCancelled,
	}
}
