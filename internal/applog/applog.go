// Package applog writes one JSON object per line through the standard
// logger.  Request-scoped entries pick up the request id, client address,
// route and principal from the echo context.
package applog

import (
	"encoding/json"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type entry struct {
	TS        string         `json:"ts"`
	Level     string         `json:"level"`
	ReqID     string         `json:"req_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Method    string         `json:"method,omitempty"`
	Path      string         `json:"path,omitempty"`
	Principal string         `json:"principal,omitempty"`
	Action    string         `json:"action,omitempty"`
	Status    int            `json:"status,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Err       string         `json:"err,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func fill(e *entry, c echo.Context) {
	if c == nil {
		return
	}
	req := c.Request()
	e.IP = c.RealIP()
	e.Method = req.Method
	e.Path = req.URL.Path
	if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
		e.ReqID = rid
	} else {
		e.ReqID = req.Header.Get(echo.HeaderXRequestID)
	}
	if pid, ok := c.Get("principal_id").(string); ok {
		e.Principal = pid
	}
}

func write(e entry) {
	b, _ := json.Marshal(e)
	log.Println(string(b))
}

func emit(level string, c echo.Context, action string, err error, fields map[string]any) {
	e := entry{TS: time.Now().UTC().Format(time.RFC3339), Level: level, Action: action, Fields: fields}
	fill(&e, c)
	if err != nil {
		e.Err = err.Error()
	}
	write(e)
}

func Info(c echo.Context, action string, fields map[string]any) { emit("info", c, action, nil, fields) }
func Audit(c echo.Context, action string, fields map[string]any) {
	emit("audit", c, action, nil, fields)
}
func Security(c echo.Context, action string, fields map[string]any) {
	emit("warn", c, action, nil, fields)
}
func Error(c echo.Context, action string, err error, fields map[string]any) {
	emit("error", c, action, err, fields)
}

// RequestLogger logs one "http" entry per request with status and latency.
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			e := entry{
				TS:        v.StartTime.UTC().Format(time.RFC3339),
				Level:     "info",
				Action:    "http",
				Status:    v.Status,
				LatencyMs: v.Latency.Milliseconds(),
			}
			fill(&e, c)
			if v.RequestID != "" {
				e.ReqID = v.RequestID
			}
			if v.Error != nil {
				e.Level = "error"
				e.Err = v.Error.Error()
			}
			write(e)
			return nil
		},
	})
}
