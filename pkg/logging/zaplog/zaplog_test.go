package zaplog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/pkg/activity"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return New(zap.New(core)), logs
}

func TestLogPersistence(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)

	logger.LogPersistence(opts.PersistenceLogEvent{Set: "server", Operation: "load", Provider: "file", Found: true})
	logger.LogPersistence(opts.PersistenceLogEvent{
		Set:        "server",
		Operation:  "load",
		FailedKeys: []string{"port"},
		Err:        errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, true, entries[0].ContextMap()["found"])
	assert.Equal(t, "file", entries[0].ContextMap()["provider"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, []interface{}{"port"}, entries[1].ContextMap()["failed_keys"])
}

func TestLogEvaluation(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)

	logger.LogEvaluation(opts.EvaluatorLogEvent{Engine: "expr", Expr: "value > 0", Target: "port"})
	logger.LogEvaluation(opts.EvaluatorLogEvent{Engine: "expr", Expr: "bad(", Err: errors.New("parse")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "port", entries[0].ContextMap()["target"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestSetIntegration(t *testing.T) {
	logger, logs := observed(zapcore.InfoLevel)
	options := append(logger.SetOptions(), opts.WithActivityHooks(activity.Hooks{logger}))

	set, err := opts.NewSet("server", []opts.Descriptor{
		opts.Field[int]("port", opts.Default("8080")),
	}, options...)
	require.NoError(t, err)

	_, err = set.Load(context.Background(), false)
	require.NoError(t, err)

	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "opts: persistence")
	assert.Contains(t, messages, "opts: activity")
	verbs := logs.FilterField(zap.String("verb", activity.VerbOptionsLoaded))
	assert.Equal(t, 1, verbs.Len())
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("debug"))
	assert.Equal(t, zapcore.WarnLevel, Level("WARN"))
	assert.Equal(t, zapcore.InfoLevel, Level("nonsense"))
}
