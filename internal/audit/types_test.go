package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qartal/kongsync/internal/errors"
)

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("push")
	require.NoError(t, err)
	assert.Equal(t, OperationPush, op)

	op, err = ParseOperation("pull")
	require.NoError(t, err)
	assert.Equal(t, OperationPull, op)

	// Empty means no direction filter.
	op, err = ParseOperation("")
	require.NoError(t, err)
	assert.Equal(t, Operation(""), op)

	_, err = ParseOperation("pus")
	require.ErrorIs(t, err, errors.ErrInvalidAction)
	assert.True(t, errors.IsInput(err))
}
