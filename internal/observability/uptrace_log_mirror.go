package observability

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	otellog "go.opentelemetry.io/otel/log"
	otelglobal "go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap/zapcore"
)

const (
	uptraceLogInstrumentation = "raceweek-stats/internal/platform/logging"
	requestLogEvent           = "http request"
	maxLogValueDepth          = 3
)

// Probe and scrape traffic would drown the request log in Uptrace.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// logField is one key/value pair from a variadic log call. Dangling keys
// have hasValue unset.
type logField struct {
	key      string
	value    any
	hasValue bool
}

func logFields(args []any) []logField {
	fields := make([]logField, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		f := logField{key: fmt.Sprintf("arg_%d", i/2)}
		if k, ok := args[i].(string); ok && strings.TrimSpace(k) != "" {
			f.key = k
		}
		if i+1 < len(args) {
			f.value, f.hasValue = args[i+1], true
		}
		fields = append(fields, f)
	}
	return fields
}

type uptraceLogMirror struct {
	logger otellog.Logger
}

func newUptraceLogMirror(serviceVersion string) logging.MirrorFunc {
	m := uptraceLogMirror{
		logger: otelglobal.Logger(uptraceLogInstrumentation, otellog.WithInstrumentationVersion(serviceVersion)),
	}
	return m.emit
}

func (m uptraceLogMirror) emit(ctx context.Context, level logging.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	fields := logFields(args)
	if isQuietRequest(msg, fields) {
		return
	}

	severity := otelSeverity(level)
	if !m.logger.Enabled(ctx, otellog.EnabledParameters{Severity: severity, EventName: msg}) {
		return
	}

	now := time.Now().UTC()
	var record otellog.Record
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetSeverity(severity)
	record.SetSeverityText(strings.ToUpper(level.String()))
	record.SetEventName(msg)
	record.SetBody(otellog.StringValue(msg))
	record.AddAttributes(otelAttributes(fields)...)

	m.logger.Emit(ctx, record)
}

func isQuietRequest(msg string, fields []logField) bool {
	if msg != requestLogEvent {
		return false
	}
	for _, f := range fields {
		if f.key != "path" {
			continue
		}
		path, ok := f.value.(string)
		if !ok {
			return false
		}
		_, quiet := quietPaths[strings.ToLower(strings.TrimSpace(path))]
		return quiet
	}
	return false
}

func otelAttributes(fields []logField) []otellog.KeyValue {
	attrs := make([]otellog.KeyValue, 0, len(fields))
	for _, f := range fields {
		switch {
		case !f.hasValue:
			attrs = append(attrs, otellog.Empty(f.key))
		case logging.IsSensitiveKey(f.key):
			attrs = append(attrs, otellog.String(f.key, logging.RedactedValue))
		default:
			attrs = append(attrs, otellog.KeyValue{Key: f.key, Value: otelValue(f.value, 0)})
		}
	}
	return attrs
}

func otelSeverity(level zapcore.Level) otellog.Severity {
	switch level {
	case zapcore.DebugLevel:
		return otellog.SeverityDebug
	case zapcore.InfoLevel:
		return otellog.SeverityInfo
	case zapcore.WarnLevel:
		return otellog.SeverityWarn
	case zapcore.ErrorLevel:
		return otellog.SeverityError
	}
	if level < zapcore.DebugLevel {
		return otellog.SeverityTrace
	}
	return otellog.SeverityFatal
}

func otelValue(value any, depth int) otellog.Value {
	if value == nil {
		return otellog.Value{}
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return otellog.Value{}
	}
	if depth >= maxLogValueDepth {
		return otellog.StringValue(fmt.Sprint(value))
	}

	switch v := value.(type) {
	case string:
		return otellog.StringValue(v)
	case bool:
		return otellog.BoolValue(v)
	case int:
		return otellog.IntValue(v)
	case int64:
		return otellog.Int64Value(v)
	case float64:
		return otellog.Float64Value(v)
	case []byte:
		return otellog.BytesValue(append([]byte(nil), v...))
	case time.Time:
		return otellog.StringValue(v.UTC().Format(time.RFC3339Nano))
	case time.Duration:
		return otellog.StringValue(v.String())
	case error:
		return otellog.StringValue(v.Error())
	case fmt.Stringer:
		// season windows log as 2025Q3-W4
		return otellog.StringValue(v.String())
	}
	return reflectedValue(reflect.ValueOf(value), depth)
}

func reflectedValue(rv reflect.Value, depth int) otellog.Value {
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return otellog.Int64Value(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return otellog.Int64Value(int64(u))
		}
	case reflect.Float32:
		return otellog.Float64Value(rv.Float())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return otellog.Value{}
		}
		return otelValue(rv.Elem().Interface(), depth+1)
	case reflect.Slice, reflect.Array:
		items := make([]otellog.Value, rv.Len())
		for i := range items {
			items[i] = otelValue(rv.Index(i).Interface(), depth+1)
		}
		return otellog.SliceValue(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return mapValue(rv, depth)
		}
	}
	return otellog.StringValue(fmt.Sprint(rv.Interface()))
}

func mapValue(rv reflect.Value, depth int) otellog.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	kvs := make([]otellog.KeyValue, len(keys))
	for i, key := range keys {
		kvs[i] = otellog.KeyValue{Key: key.String(), Value: otelValue(rv.MapIndex(key).Interface(), depth+1)}
	}
	return otellog.MapValue(kvs...)
}
