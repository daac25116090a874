package mergetrain

import (
	"time"

	"go.uber.org/zap"
)

// RunStat summarizes one merge train run for a component.
type RunStat struct {
	StartTime     time.Time
	EndTime       time.Time
	Seen          uint
	Merged        uint
	AlreadyMerged uint
	Rejected      uint
	NotReady      uint
	Filtered      uint
	Failures      uint
}

func (s *RunStat) LogFields() []zap.Field {
	return []zap.Field{
		zap.Duration("train_duration", s.EndTime.Sub(s.StartTime)),
		zap.Uint("train.seen", s.Seen),
		zap.Uint("train.merged", s.Merged),
		zap.Uint("train.already_merged", s.AlreadyMerged),
		zap.Uint("train.rejected", s.Rejected),
		zap.Uint("train.not_ready", s.NotReady),
		zap.Uint("train.filtered", s.Filtered),
		zap.Uint("train.failures", s.Failures),
	}
}
