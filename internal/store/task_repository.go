package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/maumercado/jobrunner-go/internal/task"
)

// TaskRepository persists tasks. Status transitions from the worker are
// predicate-gated so that a cancel issued through the API always wins over a
// racing terminal write.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a Pending task and fills in its assigned id and timestamps.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	m := modelFromTask(t)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	*t = *m.toTask()
	return nil
}

// GetByID retrieves a task by id.
func (r *TaskRepository) GetByID(ctx context.Context, id uint) (*task.Task, error) {
	var m TaskModel
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return m.toTask(), nil
}

// List returns tasks newest-first with offset pagination.
func (r *TaskRepository) List(ctx context.Context, skip, limit int) ([]*task.Task, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []TaskModel
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(models))
	for i := range models {
		tasks = append(tasks, models[i].toTask())
	}
	return tasks, nil
}

// CountByOwner counts all of a user's tasks, terminal included. Quota is
// admission-time only: completed history still counts against it.
func (r *TaskRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&TaskModel{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// Claim marks a task Processing on behalf of a worker. Only non-terminal
// rows are claimable; the caller has already checked the loaded status but
// the predicate holds under races with cancel.
func (r *TaskRepository) Claim(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&TaskModel{}).
		Where("id = ? AND status IN ?", id, []string{
			task.StatusPending.String(),
			task.StatusProcessing.String(),
		}).
		Updates(map[string]interface{}{
			"status":     task.StatusProcessing.String(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to claim task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrTaskNotFound
	}
	return nil
}

// IsCancelled re-reads the cooperative cancellation flag.
func (r *TaskRepository) IsCancelled(ctx context.Context, id uint) (bool, error) {
	var m TaskModel
	err := r.db.WithContext(ctx).Select("is_cancelled").First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, task.ErrTaskNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cancellation flag: %w", err)
	}
	return m.IsCancelled, nil
}

// Complete records a successful result. The is_cancelled predicate is the
// strengthening that lets an API cancel win over a racing completion.
func (r *TaskRepository) Complete(ctx context.Context, id uint, result string) error {
	return r.finalize(ctx, id, task.StatusCompleted, result)
}

// Fail records a terminal failure (the timeout path writes "Timed Out").
func (r *TaskRepository) Fail(ctx context.Context, id uint, result string) error {
	return r.finalize(ctx, id, task.StatusFailed, result)
}

func (r *TaskRepository) finalize(ctx context.Context, id uint, status task.Status, result string) error {
	res := r.db.WithContext(ctx).Model(&TaskModel{}).
		Where("id = ? AND status = ? AND is_cancelled = ?",
			id, task.StatusProcessing.String(), false).
		Updates(map[string]interface{}{
			"status":     status.String(),
			"result":     result,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race to a cancel; the Cancelled status stands.
		return nil
	}
	return nil
}

// Cancel sets the cooperative flag and the Cancelled status in one write.
// Terminal tasks are left untouched; the caller treats that as a no-op.
func (r *TaskRepository) Cancel(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&TaskModel{}).
		Where("id = ? AND status IN ?", id, []string{
			task.StatusPending.String(),
			task.StatusProcessing.String(),
		}).
		Updates(map[string]interface{}{
			"status":       task.StatusCancelled.String(),
			"is_cancelled": true,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to cancel task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CancelAllByOwner cancels every non-terminal task the user owns.
func (r *TaskRepository) CancelAllByOwner(ctx context.Context, ownerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&TaskModel{}).
		Where("owner_id = ? AND status IN ?", ownerID, []string{
			task.StatusPending.String(),
			task.StatusProcessing.String(),
		}).
		Updates(map[string]interface{}{
			"status":       task.StatusCancelled.String(),
			"is_cancelled": true,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cancel tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByOwner removes all of a user's tasks regardless of status. Stream
// entries for deleted tasks dangle until a worker no-op-acks them.
func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&TaskModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Reset truncates the tasks table and restarts the id sequence. Dialect
// specific: Postgres supports TRUNCATE ... RESTART IDENTITY, SQLite needs a
// sqlite_sequence reset.
func (r *TaskRepository) Reset(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	switch db.Dialector.Name() {
	case "postgres":
		if err := db.Exec("TRUNCATE TABLE tasks RESTART IDENTITY CASCADE").Error; err != nil {
			return fmt.Errorf("failed to reset tasks: %w", err)
		}
	default:
		if err := db.Exec("DELETE FROM tasks").Error; err != nil {
			return fmt.Errorf("failed to reset tasks: %w", err)
		}
		// sqlite_sequence only exists once an AUTOINCREMENT insert happened.
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'tasks'")
	}
	return nil
}
