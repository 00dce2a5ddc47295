package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("send: %w", New(KindNetworkUnreachable, "send", errors.New("dial tcp: refused")))
	assert.True(t, errors.Is(err, ErrNetworkUnreachable))
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, KindNetworkUnreachable, KindOf(err))
}

func TestInconsistentWrapsPersistence(t *testing.T) {
	cause := errors.New("disk full")
	err := Inconsistent("send", cause)
	assert.True(t, errors.Is(err, ErrInconsistent))
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindInconsistent, KindOf(err))

	already := Inconsistent("send", Persistence("append", cause))
	var inner *Error
	assert.True(t, errors.As(already.Err, &inner))
	assert.Equal(t, "append", inner.Op)
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindNotFound}, "not_found"},
		{&Error{Kind: KindInvalidInput, Op: "day"}, "day: invalid_input"},
		{&Error{Kind: KindPersistence, Err: errors.New("x")}, "persistence_failure: x"},
		{&Error{Kind: KindUnauthorized, Op: "send", Err: errors.New("403")}, "send: unauthorized: 403"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
