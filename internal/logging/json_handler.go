package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// newJSONHandler writes one object per line. Durations are emitted as
// fractional seconds under a "_s" suffixed key so log tooling can aggregate
// render timings.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 {
				switch attr.Key {
				case slog.TimeKey:
					attr.Key = "ts"
					if attr.Value.Kind() == slog.KindTime {
						attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
					}
					return attr
				case slog.LevelKey:
					attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
					return attr
				case slog.SourceKey:
					if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
						attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
					}
					return attr
				}
			}
			value := attr.Value.Resolve()
			switch value.Kind() {
			case slog.KindDuration:
				return slog.Float64(attr.Key+"_s", value.Duration().Seconds())
			case slog.KindAny:
				switch v := value.Any().(type) {
				case error:
					return slog.String(attr.Key, v.Error())
				case fmt.Stringer:
					return slog.String(attr.Key, v.String())
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}
