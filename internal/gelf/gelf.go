package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Syslog severities used by GELF.
const (
	LevelCritical = 2
	LevelError    = 3
	LevelWarning  = 4
	LevelInfo     = 6
	LevelDebug    = 7
)

// Writer sends GELF messages over UDP and implements io.Writer so it can sit
// behind a zap core. Each Write is expected to carry one JSON log line.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service
	}

	return &Writer{conn: conn, hostname: hostname, service: service}, nil
}

// Write implements io.Writer. Each call sends one GELF message built from a
// zap JSON entry; lines that are not JSON are forwarded as plain messages.
func (w *Writer) Write(p []byte) (int, error) {
	payload, err := json.Marshal(w.Message(p))
	if err != nil {
		return len(p), nil // don't fail the log call
	}

	// Fire-and-forget
	w.conn.Write(payload)
	return len(p), nil
}

// Sync satisfies zapcore.WriteSyncer.
func (w *Writer) Sync() error { return nil }

func (w *Writer) Close() error { return w.conn.Close() }

// Message converts one log line into a GELF 1.1 payload.
func (w *Writer) Message(p []byte) map[string]any {
	line := strings.TrimRight(string(p), "\n")
	msg := map[string]any{
		"version":       "1.1",
		"host":          w.hostname,
		"short_message": line,
		"timestamp":     float64(time.Now().UnixNano()) / 1e9,
		"level":         LevelInfo,
		"_service":      w.service,
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return msg
	}
	if s, ok := entry["msg"].(string); ok {
		msg["short_message"] = s
	}
	if lvl, ok := entry["level"].(string); ok {
		msg["level"] = severity(lvl)
	}
	if ts, ok := entry["ts"].(float64); ok {
		msg["timestamp"] = ts
	}
	for k, v := range entry {
		switch k {
		case "msg", "level", "ts":
			continue
		case "stacktrace":
			msg["full_message"] = v
			continue
		case "id":
			k = "field_id" // "_id" is reserved by GELF
		}
		msg["_"+k] = v
	}
	return msg
}

func severity(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarning
	case "error":
		return LevelError
	case "dpanic", "panic", "fatal":
		return LevelCritical
	}
	return LevelInfo
}
