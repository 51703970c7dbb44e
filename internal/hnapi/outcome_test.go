package hnapi_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
)

func TestOutcome_ExactlyOneState(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	found := hnapi.Found(map[string]any{"id": 1})
	absent := hnapi.Absent()
	failed := hnapi.Failed(boom)

	assert.True(t, found.IsFound())
	assert.False(t, found.IsAbsent() || found.IsFailed())
	assert.Equal(t, "found(id=1)", found.String())

	assert.True(t, absent.IsAbsent())
	assert.False(t, absent.IsFound() || absent.IsFailed())
	assert.Equal(t, "absent", absent.String())

	assert.True(t, failed.IsFailed())
	assert.ErrorIs(t, failed.Err(), boom)
	assert.Nil(t, failed.Payload())
	assert.Equal(t, "failed(boom)", failed.String())

	assert.Equal(t, "invalid", hnapi.Outcome{}.Kind().String())
}
