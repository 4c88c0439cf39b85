package httpclient

import (
	"net/http"
	"time"
)

// Default returns an HTTP client with timeouts so a dead upstream can't hang
// a startup preflight check forever.
func Default() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

