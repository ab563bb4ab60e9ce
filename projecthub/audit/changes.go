// Package audit records entity mutations: it diffs fields into bilingual
// change descriptions for notifications and into capped per-project log
// entries for the activity trail.
package audit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cerineuginga/client-backend/projecthub/notify"
	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Recorder struct {
	projectId uuid.UUID
	userId    uuid.UUID

	changes notify.ChangeList
	logs    []schema.ProjectLog
}

func NewRecorder(projectId, userId uuid.UUID) *Recorder {
	return &Recorder{projectId: projectId, userId: userId}
}

func (r *Recorder) addLog(actionType, message string) {
	r.logs = append(r.logs, schema.ProjectLog{
		Id:         uuid.New(),
		ProjectId:  r.projectId,
		ActionType: actionType,
		Message:    message,
		UserId:     r.userId,
		Timestamp:  time.Now().UTC(),
	})
}

// Field records a change to a text field if the value actually changed.
// Returns whether a change was recorded so callers can apply the new value
// conditionally.
func (r *Recorder) Field(fieldPt, fieldEn, oldValue, newValue string) bool {
	if oldValue == newValue {
		return false
	}

	r.changes.Add(
		fmt.Sprintf("%v alterado de '%v' para '%v'", fieldPt, oldValue, newValue),
		fmt.Sprintf("%v changed from '%v' to '%v'", fieldEn, oldValue, newValue),
	)
	r.addLog("field_update", fmt.Sprintf("%v changed from '%v' to '%v'", fieldEn, oldValue, newValue))
	return true
}

// Percent records a change to an execution percentage.
func (r *Recorder) Percent(fieldPt, fieldEn string, oldValue, newValue float64) bool {
	if oldValue == newValue {
		return false
	}

	r.changes.Add(
		fmt.Sprintf("%v alterado de %.1f%% para %.1f%%", fieldPt, oldValue, newValue),
		fmt.Sprintf("%v changed from %.1f%% to %.1f%%", fieldEn, oldValue, newValue),
	)
	r.addLog("progress_update", fmt.Sprintf("%v changed from %.1f%% to %.1f%%", fieldEn, oldValue, newValue))
	return true
}

// Note records an unconditional entry, e.g. banner uploads or the automatic
// rename applied on a name collision.
func (r *Recorder) Note(actionType, messagePt, messageEn string) {
	r.changes.Add(messagePt, messageEn)
	r.addLog(actionType, messageEn)
}

func (r *Recorder) Empty() bool {
	return len(r.logs) == 0
}

func (r *Recorder) Changes() notify.ChangeList {
	return r.changes
}

// Flush appends the recorded log entries inside the caller's transaction and
// trims the trail to the newest entries so it stays bounded.
func (r *Recorder) Flush(txn *gorm.DB) error {
	if len(r.logs) == 0 {
		return nil
	}

	result := txn.Create(&r.logs)
	if result.Error != nil {
		slog.Error("sql error appending project logs", "project_id", r.projectId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	return TrimLogs(txn, r.projectId)
}

// TrimLogs drops everything but the newest MaxProjectLogs entries for a
// project.
func TrimLogs(txn *gorm.DB, projectId uuid.UUID) error {
	var keep []uuid.UUID
	result := txn.Model(&schema.ProjectLog{}).
		Where("project_id = ?", projectId).
		Order("timestamp desc").
		Limit(schema.MaxProjectLogs).
		Pluck("id", &keep)
	if result.Error != nil {
		slog.Error("sql error selecting project logs to retain", "project_id", projectId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	result = txn.Where("project_id = ? AND id NOT IN ?", projectId, keep).Delete(&schema.ProjectLog{})
	if result.Error != nil {
		slog.Error("sql error trimming project logs", "project_id", projectId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	return nil
}
