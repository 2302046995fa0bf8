package api

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

// Response is the raw outcome of one transport call: status code plus body.
// Interpreting either is the sync engine's job.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the "send payload, get status and body" primitive the sync
// engine publishes results through. Retries are deliberately absent; the
// engine's resend semantics own recovery.
type Client struct {
	client *fasthttp.Client
}

func NewClient() *Client {
	return &Client{
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// Post sends one payload to a result service. A context deadline is honored
// through the transport; its expiry surfaces as a transport error.
func (c *Client) Post(ctx context.Context, url, apiKey, contentType string, body []byte) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	if apiKey != "" {
		req.Header.Set("Authorization", apiKey)
	}
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	out := &Response{StatusCode: resp.StatusCode()}
	out.Body = append(out.Body, resp.Body()...)
	return out, nil
}
