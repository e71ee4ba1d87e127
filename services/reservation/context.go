package reservation

import "context"

type contextKey string

const schedulerRunKey contextKey = "schedulerRunID"

// WithSchedulerRun tags a context with the scheduler run driving it, so
// automatic transitions stamp the run id into their audit entries.
func WithSchedulerRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, schedulerRunKey, runID)
}

func schedulerRunFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(schedulerRunKey).(string); ok {
		return v
	}
	return ""
}
