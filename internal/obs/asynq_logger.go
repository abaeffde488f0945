package obs

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TaskLogger adapts zerolog to the asynq.Logger interface so worker internals
// log in the same structured stream as task handlers.
type TaskLogger struct {
	Logger zerolog.Logger
}

func (l TaskLogger) Debug(args ...interface{}) { l.Logger.Debug().Msg(fmt.Sprint(args...)) }

func (l TaskLogger) Info(args ...interface{}) { l.Logger.Info().Msg(fmt.Sprint(args...)) }

func (l TaskLogger) Warn(args ...interface{}) { l.Logger.Warn().Msg(fmt.Sprint(args...)) }

func (l TaskLogger) Error(args ...interface{}) { l.Logger.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs at fatal level, which exits the process.
func (l TaskLogger) Fatal(args ...interface{}) { l.Logger.Fatal().Msg(fmt.Sprint(args...)) }
