package history

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Code: CodeNoOp, Op: "undo", Message: "nothing to undo (cursor 0)"}, "undo: NO_OP: nothing to undo (cursor 0)"},
		{&Error{Code: CodeNotAttached}, "NOT_ATTACHED"},
		{&Error{Code: CodeConfiguration, Op: "attach", Message: "resolve", Err: errors.New("boom")}, "attach: CONFIGURATION: resolve: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := newError(CodeNoOp, "redo", "nothing to redo")
	wrapped := fmt.Errorf("toolbar: %w", err)

	assert.ErrorIs(t, wrapped, ErrNoOp)
	assert.NotErrorIs(t, wrapped, ErrNotAttached)
	assert.NotErrorIs(t, wrapped, ErrConfiguration)
	assert.NotErrorIs(t, wrapped, ErrAlreadyAttached)
	assert.NotErrorIs(t, ErrNoOp, err, "a specific error is not a sentinel")

	assert.Equal(t, CodeNoOp, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("no such node")
	err := configError(cause, "resolve %q", "/x")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "attach", err.Op)
}
