package client

import (
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/rs/zerolog/log"
)

// debugTransport logs full request/response dumps for troubleshooting API
// communication (malformed requests, auth problems, unexpected payloads).
//
// Enable with DOCUPILOT_DEBUG=true or DEBUG=true, or WithDebugLogging(true).
// Dumps contain bearer tokens and document data; never enable in production.
//
//	export DOCUPILOT_DEBUG=true
//	docupilot docs list   # every HTTP exchange is logged at debug level
type debugTransport struct{ base http.RoundTripper }

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := dt.base
	if base == nil {
		base = http.DefaultTransport
	}

	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", string(reqDump)).Msg("HTTP request")
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	if respDump, err := httputil.DumpResponse(resp, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}

// debugLoggingRequested reports whether DOCUPILOT_DEBUG or DEBUG is "true".
func debugLoggingRequested() bool {
	return os.Getenv("DOCUPILOT_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}
