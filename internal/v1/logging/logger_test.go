package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLoggerBeforeInitialize(t *testing.T) {
	// Must never return nil, even before Initialize runs.
	l := GetLogger()
	assert.NotNil(t, l)
}

func TestInitializeIsIdempotent(t *testing.T) {
	assert.NoError(t, Initialize(true))
	assert.NoError(t, Initialize(false))
	assert.NotNil(t, GetLogger())
}

func TestAppendContextFields(t *testing.T) {
	ctx := context.WithValue(context.Background(), CorrelationIDKey, "abc-123")
	ctx = context.WithValue(ctx, UserIDKey, "user-1")
	ctx = context.WithValue(ctx, RoomIDKey, "r4nd0m")

	fields := appendContextFields(ctx, nil)

	names := make(map[string]bool, len(fields))
	for _, f := range fields {
		names[f.Key] = true
	}
	assert.True(t, names["correlation_id"])
	assert.True(t, names["user_id"])
	assert.True(t, names["room_id"])
	assert.True(t, names["service"])
}

func TestAppendContextFieldsNilContext(t *testing.T) {
	assert.Nil(t, appendContextFields(nil, nil)) //nolint:staticcheck
}

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"alice@example.com", "***@example.com"},
		{"no-at-sign", "***"},
		{"@leading", "***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactEmail(tt.in))
	}
}
