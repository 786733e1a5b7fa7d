package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/namikmesic/convostream/internal/source"
)

// Delivery chooses how a response body reaches the frame parser: pulled by a
// read loop or pushed through an emitter.
type Delivery interface {
	Source(streamID uuid.UUID, body io.Reader) source.ChunkSource
}

// PullDelivery reads the body directly. It is the default.
type PullDelivery struct {
	BufferSize int
}

func (d PullDelivery) Source(_ uuid.UUID, body io.Reader) source.ChunkSource {
	return source.NewPull(body, d.BufferSize)
}

// Client opens conversation streams against one API deployment.
type Client struct {
	endpoint   string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	delivery   Delivery
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithDelivery(d Delivery) Option {
	return func(c *Client) { c.delivery = d }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	endpoint, err := conversationsURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			// No timeout: the body stays open for the whole answer
			Timeout: 0,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		delivery: PullDelivery{},
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c, nil
}

// StreamConversation sends req and returns immediately; the request runs in
// the background and its progress is published to the returned Stream's
// listeners. Cancelling ctx or calling Abort ends the stream with EndAborted.
func (c *Client) StreamConversation(ctx context.Context, req Request, opts ...StreamOption) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := newStream(cancel)
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	s.start()
	go c.launch(ctx, s, req)
	return s
}

func conversationsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("parse base url: must be absolute")
	}
	return u.JoinPath("conversations").String(), nil
}
