package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/cerineuginga/client-backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	utils.WriteError(w, GetResponseCode(err), err)
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkProjectExists(txn *gorm.DB, projectId uuid.UUID) error {
	if _, err := schema.GetProject(projectId, txn, false); err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

// resolveProjectName returns a globally unique project name. On collision
// the name gets a short random suffix instead of rejecting the request, and
// the second return reports that the rename happened.
func resolveProjectName(txn *gorm.DB, name string, excludeId uuid.UUID) (string, bool, error) {
	var existing schema.Project
	query := txn.Limit(1).Where("name = ?", name)
	if excludeId != uuid.Nil {
		query = query.Where("id != ?", excludeId)
	}
	result := query.Find(&existing)
	if result.Error != nil {
		slog.Error("sql error checking for duplicate project name", "name", name, "error", result.Error)
		return "", false, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		return name, false, nil
	}

	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("%v-%v", name, suffix), true, nil
}

func validExecution(value float64) bool {
	return value >= 0 && value <= 100
}

func dbError(action string, err error) error {
	slog.Error("sql error in "+action, "error", err)
	return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
}
