package diagnostics

import (
	"go.uber.org/zap"
)

// ZapSink writes events to a zap logger, for hosts that already run on zap.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.With(zap.String("component", "collator"))}
}

func (s *ZapSink) UnknownFields(names []string) {
	s.logger.Warn("unknown input names", zap.Strings("fields", names))
}

func (s *ZapSink) FieldStacked(field string, shapes [][]int) {
	s.logger.Info("stacked auxiliary input",
		zap.String("field", field),
		zap.Int("elements", len(shapes)),
		zap.Any("shapes", shapes),
	)
}

func (s *ZapSink) BatchCollated(size int, fields []string) {
	s.logger.Debug("collated batch", zap.Int("size", size), zap.Strings("fields", fields))
}
