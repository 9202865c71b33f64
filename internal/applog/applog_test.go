package applog

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func decode(t *testing.T, line string) entry {
	t.Helper()
	var e entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		t.Fatalf("not a JSON line: %q (%v)", line, err)
	}
	return e
}

func TestErrorEntry(t *testing.T) {
	buf := captureLog(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/v1/provider/availability", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("principal_id", "p-42")

	Error(c, "availability.submit", errors.New("boom"), map[string]any{"listing_id": "beilari"})

	got := decode(t, strings.TrimSpace(buf.String()))
	if got.Level != "error" || got.Action != "availability.submit" || got.Err != "boom" {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.ReqID != "rid-1" || got.Principal != "p-42" || got.Method != http.MethodPut {
		t.Errorf("request fields missing: %+v", got)
	}
	if got.Fields["listing_id"] != "beilari" {
		t.Errorf("fields = %v", got.Fields)
	}
}

func TestInfoWithoutContext(t *testing.T) {
	buf := captureLog(t)
	Info(nil, "startup", nil)
	got := decode(t, strings.TrimSpace(buf.String()))
	if got.Level != "info" || got.Path != "" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestRequestLogger(t *testing.T) {
	buf := captureLog(t)
	e := echo.New()
	e.Use(middleware.RequestID())
	e.Use(RequestLogger())
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	got := decode(t, strings.TrimSpace(buf.String()))
	if got.Action != "http" || got.Status != http.StatusOK || got.Path != "/healthz" {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.ReqID == "" || got.ReqID != rec.Header().Get(echo.HeaderXRequestID) {
		t.Errorf("ReqID = %q, response header %q", got.ReqID, rec.Header().Get(echo.HeaderXRequestID))
	}
}
