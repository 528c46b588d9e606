package sim

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// ActivityLogger is a hook that logs every activity the main loop
// executes.
type ActivityLogger struct {
	Logger *logrus.Logger
}

// NewActivityLogger returns a hook that writes activity records into the
// given logger.
func NewActivityLogger(logger *logrus.Logger) *ActivityLogger {
	return &ActivityLogger{Logger: logger}
}

// Func writes the activity information into the logger.
func (h *ActivityLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeActivity {
		return
	}

	a, ok := ctx.Item.(Activity)
	if !ok {
		return
	}

	fields := logrus.Fields{
		"cycle":    a.DeliveryTime(),
		"priority": a.Priority(),
		"activity": reflect.TypeOf(a).String(),
	}

	if ev, ok := a.(*Event); ok {
		fields["link"] = ev.link.Name()
	}

	h.Logger.WithFields(fields).Debug("executing activity")
}
