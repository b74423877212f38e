package logfields

import "go.uber.org/zap"

func EventProvider(val string) zap.Field {
	return zap.String("event_provider", val)
}

func Event(val string) zap.Field {
	return zap.String("event", val)
}

// RunID identifies a single automerge workflow execution.
func RunID(val string) zap.Field {
	return zap.String("run_id", val)
}
