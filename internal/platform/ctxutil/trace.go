package ctxutil

import "context"

type traceDataKey struct{}

type updateDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// UpdateData identifies the Telegram update being processed.
type UpdateData struct {
	UpdateID int64
	ChatID   int64
	Kind     string
}

func WithUpdateData(ctx context.Context, ud *UpdateData) context.Context {
	return context.WithValue(ctx, updateDataKey{}, ud)
}

func GetUpdateData(ctx context.Context) *UpdateData {
	if ud, ok := ctx.Value(updateDataKey{}).(*UpdateData); ok {
		return ud
	}
	return nil
}

// LogFields returns trace/update identifiers as logger key-value pairs.
func LogFields(ctx context.Context) []interface{} {
	var fields []interface{}
	if td := GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	if ud := GetUpdateData(ctx); ud != nil {
		fields = append(fields, "chat_id", ud.ChatID, "update_kind", ud.Kind)
	}
	return fields
}
