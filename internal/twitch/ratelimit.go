package twitch

import (
	"net/http"

	"golang.org/x/time/rate"
)

// throttledTransport waits on a shared token bucket before every request.
type throttledTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// RoundTrip blocks until the limiter admits the request or its context ends.
func (t throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// throttled returns a copy of base whose transport is gated by limiter.
func throttled(base *http.Client, limiter *rate.Limiter) *http.Client {
	clone := *base
	rt := clone.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	clone.Transport = throttledTransport{base: rt, limiter: limiter}
	return &clone
}
