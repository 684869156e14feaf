package migrate

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConfirmationDeclined aborts a run before anything is collected
var ErrConfirmationDeclined = errors.New("operator declined to continue")

var errMigrationDirExists = errors.New("migration directory already exists")

// ExportError is returned when secret keys cannot be exported from a domain
type ExportError struct {
	Domain string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export secret keys from %s: %v", e.Domain, e.Err)
}

func (e *ExportError) Cause() error  { return e.Err }
func (e *ExportError) Unwrap() error { return e.Err }

// MeasurementError is returned when a size or capacity query fails
type MeasurementError struct {
	What string
	Err  error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("measure %s: %v", e.What, e.Err)
}

func (e *MeasurementError) Cause() error  { return e.Err }
func (e *MeasurementError) Unwrap() error { return e.Err }
