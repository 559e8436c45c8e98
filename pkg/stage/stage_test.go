package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"transport wrapper", Transport(errors.New("dial tcp")), ClassTransport},
		{"integrity wrapper", Integrity(errors.New("bad header")), ClassIntegrity},
		{"wrapped wrapper", fmt.Errorf("convert: %w", Integrity(errors.New("x"))), ClassIntegrity},
		{"missing artifact sentinel", fmt.Errorf("open: %w", ErrMissingArtifact), ClassIntegrity},
		{"invalid artifact sentinel", ErrInvalidArtifact, ClassIntegrity},
		{"transport sentinel", fmt.Errorf("page 2: %w", ErrTransport), ClassTransport},
		{"plain error", errors.New("disk full"), ClassInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassOf(tt.err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := Integrity(inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "integrity error: inner", err.Error())
}

func TestRun_Success(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)

	res := Run(context.Background(), Convert, logger, func(ctx context.Context, l zerolog.Logger) (Outcome, error) {
		l.Info().Msg("inside body")
		return Outcome{RowsIn: 3, RowsOut: 3, Artifacts: []string{"out.csv"}}, nil
	})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.OK())
	assert.NoError(t, res.Err())
	assert.Equal(t, Convert, res.Stage)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"out.csv"}, res.Artifacts)
	assert.Contains(t, buf.String(), `"stage":"convert"`)
	assert.Contains(t, buf.String(), "inside body")
	assert.Contains(t, buf.String(), res.RunID)
}

func TestRun_Skipped(t *testing.T) {
	res := Run(context.Background(), Aggregate, zerolog.Nop(), func(context.Context, zerolog.Logger) (Outcome, error) {
		return Outcome{Status: StatusSkipped, Message: "nothing to aggregate"}, nil
	})

	assert.Equal(t, StatusSkipped, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, "nothing to aggregate", res.Message)
}

func TestRun_ErrorIsContained(t *testing.T) {
	buf := &bytes.Buffer{}

	res := Run(context.Background(), Extract, zerolog.New(buf), func(context.Context, zerolog.Logger) (Outcome, error) {
		return Outcome{}, Transport(errors.New("status 503"))
	})

	assert.Equal(t, StatusFailed, res.Status)
	assert.False(t, res.OK())
	assert.Equal(t, ClassTransport, res.Class)
	require.Error(t, res.Err())
	assert.Contains(t, res.Message, "status 503")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestRun_PanicIsContained(t *testing.T) {
	res := Run(context.Background(), Clean, zerolog.Nop(), func(context.Context, zerolog.Logger) (Outcome, error) {
		var m map[string]int
		m["boom"] = 1
		return Outcome{}, nil
	})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, ClassInternal, res.Class)
	assert.True(t, strings.HasPrefix(res.Message, "internal error: panic:"))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	res := Run(ctx, Extract, zerolog.Nop(), func(context.Context, zerolog.Logger) (Outcome, error) {
		called = true
		return Outcome{}, nil
	})

	assert.False(t, called)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err(), context.Canceled)
}

func TestRun_ExposesRunID(t *testing.T) {
	var seen string
	res := Run(context.Background(), Clean, zerolog.Nop(), func(ctx context.Context, _ zerolog.Logger) (Outcome, error) {
		seen = RunID(ctx)
		return Outcome{}, nil
	})

	assert.Equal(t, res.RunID, seen)
	assert.Empty(t, RunID(context.Background()))
}

func TestParseName(t *testing.T) {
	for _, n := range Order {
		got, err := ParseName(string(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	_, err := ParseName("load")
	assert.Error(t, err)
}
