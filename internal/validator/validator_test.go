package validator

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/testutil"
)

func TestValidate_RunTrace(t *testing.T) {
	t.Run("valid run", func(t *testing.T) {
		assert.NoError(t, Validate(testutil.NewTestRun()))
	})

	tests := []struct {
		name   string
		mutate func(r *domain.RunTrace)
		field  string
	}{
		{"missing name", func(r *domain.RunTrace) { r.Name = "" }, "name"},
		{"long name", func(r *domain.RunTrace) { r.Name = strings.Repeat("x", 256) }, "name"},
		{"node without id", func(r *domain.RunTrace) { r.Messages[1].ID = uuid.Nil }, "messages[1].id"},
		{"node without name", func(r *domain.RunTrace) { r.Messages[2].NodeName = "" }, "messages[2].nodeName"},
		{"current without trace", func(r *domain.RunTrace) {
			r.Current = &domain.CurrentTraceAndSpan{ParentSpanID: uuid.New()}
		}, "current.traceId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := testutil.NewTestRun()
			tt.mutate(run)

			err := Validate(run)

			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			errs := err.(ValidationErrors)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidate_NotAStruct(t *testing.T) {
	err := Validate("run")
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}
