package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logStart(r *http.Request, requestID string) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Str("request_id", requestID)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("http_request_id", rid)
	}
	z.Msg("submit start")
}

func logEnd(r *http.Request, requestID string, status int, dur time.Duration, err error) {
	if zlog == nil {
		if err != nil {
			log.Printf("submit end path=%s status=%d dur=%s err=%v", r.URL.Path, status, dur, err)
		}
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Str("request_id", requestID).Int("status", status).Dur("dur", dur)
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("submit end")
}
