package logger

import "go.uber.org/zap/zapcore"

// Verbosity levels, counted from repeated -v flags.
const (
	VerbosityUser   = 0 // results, warnings and errors
	VerbosityInfo   = 1 // -v: + batch progress, layout summaries
	VerbosityDebug  = 2 // -vv: + every anomaly, skipped layout lines
	VerbosityTrace  = 3 // -vvv: + per-batch persistence detail
	maxVerbosityTag = "-vvv+"
)

// VerbosityToLevel maps a -v count to a zap level.
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShowProgress reports whether per-batch progress lines are printed.
func ShowProgress(verbosity int) bool {
	return verbosity >= VerbosityInfo
}

// ShowDetail reports whether individual anomalies and skipped lines are
// listed rather than counted.
func ShowDetail(verbosity int) bool {
	return verbosity >= VerbosityDebug
}

// FlagName renders a verbosity as the flag that selects it.
func FlagName(verbosity int) string {
	switch {
	case verbosity <= VerbosityUser:
		return ""
	case verbosity >= VerbosityTrace:
		return maxVerbosityTag
	default:
		b := []byte{'-'}
		for i := 0; i < verbosity; i++ {
			b = append(b, 'v')
		}
		return string(b)
	}
}
