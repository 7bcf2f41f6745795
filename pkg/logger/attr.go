package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under the key "error". Nil yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the recipient under the key "user_id".
func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}

// UserIDs records a multicast recipient count under the key "recipients".
func UserIDs(ids []int64) slog.Attr {
	return slog.Int("recipients", len(ids))
}

// NotificationID records a queue item or inbox record id.
// A nil id yields an empty Attr.
func NotificationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("notification_id", id)
}

// NotificationType records the open notification type tag.
func NotificationType(t string) slog.Attr {
	return slog.String("notification_type", t)
}

// Provider records the delivery channel name under the key "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Kind records a classified failure kind.
func Kind(kind interface{ String() string }) slog.Attr {
	return slog.String("error_kind", kind.String())
}

// Attempt records the attempt number of a queued item.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Count records a processed item count.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Duration records an elapsed time under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID records the request identifier. A blank id yields an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}
