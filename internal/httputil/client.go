package httputil

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultUserAgent = "newsdrop/0.1"
)

// Options configures the client used for every page and manifest download.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	// Progress renders a byte progress bar on stderr for each download.
	Progress bool
}

// Client wraps an http.Client with the request defaults of a run.
type Client struct {
	HTTP *http.Client
	opts Options
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Client{
		HTTP: &http.Client{Timeout: opts.Timeout},
		opts: opts,
	}
}
