package logfields

import "go.uber.org/zap"

func Event(val string) zap.Field {
	return zap.String("event", val)
}

func RunID(val string) zap.Field {
	return zap.String("run_id", val)
}
