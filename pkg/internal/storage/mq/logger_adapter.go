package mq

import (
	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// zerologAdapter 把 watermill 的日志写入 zerolog.
// watermill 在每次订阅、发布时都会打 Info，这里整体降一级，避免事件流刷屏.
type zerologAdapter struct {
	l zerolog.Logger
}

func (z zerologAdapter) log(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	if topic, ok := fields["topic"]; ok {
		ev = ev.Interface("topic", topic)
		fields = fields.Copy()
		delete(fields, "topic")
	}

	if len(fields) > 0 {
		ev = ev.Fields(map[string]any(fields))
	}

	ev.Msg(msg)
}

func (z zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	z.log(z.l.Error().Err(err), msg, fields)
}

func (z zerologAdapter) Info(msg string, fields watermill.LogFields) {
	z.log(z.l.Debug(), msg, fields)
}

func (z zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	z.log(z.l.Trace(), msg, fields)
}

func (z zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	z.log(z.l.Trace(), msg, fields)
}

func (z zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zerologAdapter{l: z.l.With().Fields(map[string]any(fields)).Logger()}
}
