package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/dodocesoir/internal/config"
)

// cachedResponse is what NewRedisCache stores per key.  Body is base64 in
// the JSON encoding.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// bodyRecorder tees the response body into buf, up to limit bytes.  A
// response larger than limit is marked truncated and never cached.
type bodyRecorder struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (w *bodyRecorder) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
    if !w.truncated {
        if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
            w.truncated = true
            w.buf.Reset()
        } else {
            w.buf.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the parts selected by cfg.KeyStrategy together with
// the Accept-Language header, since listing views are localised.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    lang := strings.ToLower(strings.TrimSpace(r.Header.Get("Accept-Language")))

    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{r.URL.Path}
    case "method_route":
        parts = []string{r.Method, r.URL.Path}
    case "method_route_query":
        parts = []string{r.Method, r.URL.Path, r.URL.RawQuery}
    default: // route_query
        parts = []string{r.URL.Path, r.URL.RawQuery}
    }
    parts = append(parts, lang)

    sum := sha1.Sum([]byte(strings.Join(parts, "|")))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

func encodePayload(resp cachedResponse) ([]byte, error) {
    return json.Marshal(resp)
}

func decodePayload(bs []byte) (cachedResponse, bool) {
    var resp cachedResponse
    if err := json.Unmarshal(bs, &resp); err != nil || resp.Status == 0 {
        return cachedResponse{}, false
    }
    return resp, true
}

// cacheable reports whether r may be answered from, or stored in, the
// cache.  Requests carrying credentials always reach the handler.
func cacheable(cfg config.CacheConfig, r *http.Request) bool {
    if !cfg.Methods[strings.ToUpper(r.Method)] {
        return false
    }
    if r.Header.Get(echo.HeaderAuthorization) != "" {
        return false
    }
    return !strings.Contains(strings.ToLower(r.Header.Get("Cache-Control")), "no-cache")
}

// NewRedisCache caches 200 responses of the public directory in Redis for
// cfg.TTL and marks responses with X-Cache: HIT or MISS.  Without Redis it
// is a no-op.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cacheable(cfg, c.Request()) {
                return next(c)
            }
            key := cacheKeyFrom(cfg, c)

            if bs, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
                if hit, ok := decodePayload(bs); ok {
                    h := c.Response().Header()
                    for k, vals := range hit.Header {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        h[k] = vals
                    }
                    h.Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, h.Get(echo.HeaderContentType), hit.Body)
                }
            }

            rw := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rw.status != http.StatusOK || rw.truncated {
                return nil
            }

            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            hdr.Del(echo.HeaderXRequestID)
            payload, err := encodePayload(cachedResponse{Status: rw.status, Header: hdr, Body: rw.buf.Bytes()})
            if err == nil {
                // the request context may already be cancelled
                _ = rdb.Set(context.Background(), key, payload, ttl).Err()
            }
            return nil
        }
    }
}
