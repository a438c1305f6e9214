package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyFile means the spreadsheet had no data rows.
	ErrEmptyFile = errors.New("no data rows in file")
	// ErrNoValidRows means normalization dropped every row in the batch.
	ErrNoValidRows = errors.New("no valid rows after normalization")
)

// MappingUnresolvedError means neither an explicit, cached, nor suggested
// mapping fits the file. Columns carries the file's header row so an
// operator can supply the mapping explicitly and retry.
type MappingUnresolvedError struct {
	Columns []string
}

func (e *MappingUnresolvedError) Error() string {
	return fmt.Sprintf("column mapping unresolved; available columns: %s", strings.Join(e.Columns, ", "))
}
