package utils

import (
	"net/http"
	"net/http/httputil"
	"regexp"

	"github.com/rs/zerolog/log"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}

var secretPattern = regexp.MustCompile(`(?i)((?:authorization: bearer|access_token|refresh_token|client_secret|code)["=:\s]+)[^&"\s,]+`)

// Redact blanks out bearer tokens and OAuth secrets in a dumped request or response
func Redact(dump []byte) string {
	return secretPattern.ReplaceAllString(string(dump), "${1}[REDACTED]")
}

func DebugRoundTripper() http.RoundTripper {
	return DebugRoundTripperWithUnderlying(http.DefaultTransport)
}

// DebugRoundTripperWithUnderlying logs every request and response at debug level
func DebugRoundTripperWithUnderlying(u http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		d, _ := httputil.DumpRequestOut(r, true)
		log.Debug().Str("url", r.URL.Path).Msg(Redact(d))
		res, err := u.RoundTrip(r)
		if err == nil {
			d, _ := httputil.DumpResponse(res, true)
			log.Debug().Int("status", res.StatusCode).Msg(Redact(d))
		}
		return res, err
	})
}
