package identity_test

import (
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	t *testing.T
}

func (l testLogger) Debug(format string, args ...any) {
	l.t.Logf("[DBG] "+format, args...)
}

func (l testLogger) Info(format string, args ...any) {
	l.t.Logf("[INF] "+format, args...)
}

func (l testLogger) Error(format string, args ...any) {
	l.t.Logf("[ERR] "+format, args...)
}

func textCodeOf(t *testing.T, err error) string {
	t.Helper()

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr), "expected rich error, got %T: %v", err, err)

	return richErr.TextCode
}
