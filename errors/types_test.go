package errors_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ezachrisen/formrules/errors"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "expression with text",
			err:  &ferrors.ExpressionError{Expression: "a &&", Reason: "empty operand"},
			want: `expression "a &&": empty operand`,
		},
		{
			name: "expression without text",
			err:  &ferrors.ExpressionError{Reason: "nesting too deep"},
			want: "expression error: nesting too deep",
		},
		{
			name: "validation with field",
			err:  &ferrors.ValidationError{Field: "rules[0].id", Message: "id is required"},
			want: "validation failed on rules[0].id: id is required",
		},
		{
			name: "validation without field",
			err:  &ferrors.ValidationError{Message: "duplicate names"},
			want: "validation failed: duplicate names",
		},
		{
			name: "not found",
			err:  &ferrors.NotFoundError{Resource: "rule", ID: "r1"},
			want: "rule not found: r1",
		},
		{
			name: "config with key",
			err:  &ferrors.ConfigError{Key: "fields[1].type", Reason: "unknown field type"},
			want: "config error at fields[1].type: unknown field type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrapAndType(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := ferrors.Wrapf(&ferrors.ConfigError{Reason: "decoding", Cause: cause}, "loading %s", "form.yaml")

	require.Error(t, err)
	assert.True(t, ferrors.Is(err, io.ErrUnexpectedEOF))

	var ce *ferrors.ConfigError
	require.True(t, ferrors.As(err, &ce))
	assert.Equal(t, "decoding", ce.Reason)
	assert.Equal(t, "config", ferrors.Type(err))
	assert.Equal(t, "internal", ferrors.Type(fmt.Errorf("plain")))
	assert.Nil(t, ferrors.Wrap(nil, "nothing"))
}
