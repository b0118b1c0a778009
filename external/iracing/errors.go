package iracing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/raceweek-stats/internal/usecase"
)

// PartialChunkFailureError lists every chunk file that could not be
// downloaded. It matches usecase.ErrPartialChunkFailure.
type PartialChunkFailureError struct {
	FailedFiles []string
	Total       int
	Causes      map[string]string
}

func newPartialChunkFailure(total int, causes map[string]string) *PartialChunkFailureError {
	files := make([]string, 0, len(causes))
	for name := range causes {
		files = append(files, name)
	}
	sort.Strings(files)
	return &PartialChunkFailureError{FailedFiles: files, Total: total, Causes: causes}
}

func (e *PartialChunkFailureError) Error() string {
	return fmt.Sprintf("%s: %d of %d chunk files failed [%s]",
		usecase.ErrPartialChunkFailure, len(e.FailedFiles), e.Total, strings.Join(e.FailedFiles, ", "))
}

func (e *PartialChunkFailureError) Unwrap() error {
	return usecase.ErrPartialChunkFailure
}

// SchemaViolation pins one rejected value to its chunk and array position.
type SchemaViolation struct {
	Chunk string `json:"chunk"`
	Index int    `json:"index"`
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value string `json:"value,omitempty"`
}

func (v SchemaViolation) String() string {
	if v.Index < 0 {
		return fmt.Sprintf("%s: %s", v.Chunk, v.Rule)
	}
	return fmt.Sprintf("%s[%d].%s: %s (got %s)", v.Chunk, v.Index, v.Field, v.Rule, v.Value)
}

// SchemaMismatchError matches usecase.ErrSchemaMismatch.
type SchemaMismatchError struct {
	Violations []SchemaViolation
}

const maxViolationsInMessage = 5

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, 0, maxViolationsInMessage+1)
	for i, violation := range e.Violations {
		if i == maxViolationsInMessage {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Violations)-i))
			break
		}
		parts = append(parts, violation.String())
	}
	return fmt.Sprintf("%s: %s", usecase.ErrSchemaMismatch, strings.Join(parts, "; "))
}

func (e *SchemaMismatchError) Unwrap() error {
	return usecase.ErrSchemaMismatch
}
