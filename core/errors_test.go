package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_UnwrapChains(t *testing.T) {
	cause := errors.New("boom")

	var mie *ModelInvocationError
	err := fmt.Errorf("step 3: %w", &ModelInvocationError{Agent: "Rag", Err: cause})
	require.ErrorAs(t, err, &mie)
	assert.True(t, mie.Retryable())
	assert.ErrorIs(t, err, cause)

	var tee *ToolExecutionError
	err = &ToolExecutionError{Tool: "web_search", CallID: "c1", Err: cause}
	require.ErrorAs(t, err, &tee)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "web_search")

	err = &TimeoutError{Steps: 4, Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrors_Messages(t *testing.T) {
	assert.Equal(t, `unknown tool "nope" (call c9)`, (&UnknownToolError{Tool: "nope", CallID: "c9"}).Error())
	assert.Equal(t, "recursion limit of 25 steps exceeded", (&RecursionLimitError{Limit: 25}).Error())
	assert.Equal(t, `invalid input "question": must not be empty`, (&InputError{Field: "question", Reason: "must not be empty"}).Error())
	assert.Equal(t, "invalid graph: no entry", (&GraphError{Reason: "no entry"}).Error())
}
