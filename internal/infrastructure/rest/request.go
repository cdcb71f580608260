package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
)

// StatusError is a non-2xx answer from the inventory API. A 404 matches
// domain.ErrNotFound under errors.Is.
type StatusError struct {
	Code int
	Path string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inventory %s: %d %s", e.Path, e.Code, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

func NewRequest(c *RESTClient) *Request {
	return &Request{client: c, query: url.Values{}}
}

// Request is a helper for building one inventory call.
type Request struct {
	client *RESTClient
	verb   string
	path   string
	query  url.Values
}

func (r *Request) Verb(verb string) *Request {
	r.verb = verb
	return r
}

// Path joins the segments below the base path, escaping each one.
func (r *Request) Path(segments ...string) *Request {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	r.path = strings.Join(escaped, "/")
	return r
}

// Param adds a query parameter; empty values are skipped.
func (r *Request) Param(key, value string) *Request {
	if value != "" {
		r.query.Set(key, value)
	}
	return r
}

func (r *Request) Do(ctx context.Context) *Result {
	u := r.client.base + "/" + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.verb, u, nil)
	if err != nil {
		return &Result{err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.client.Do(req)
	if err != nil {
		return &Result{err: fmt.Errorf("error connecting to inventory API: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return &Result{
		err:        err,
		body:       body,
		statusCode: resp.StatusCode,
		path:       r.path,
	}
}

type Result struct {
	err        error
	body       []byte
	statusCode int
	path       string
}

// Into decodes a successful body into obj, which must be a pointer.
func (r *Result) Into(obj any) error {
	if r.err != nil {
		return r.err
	}
	if r.statusCode < 200 || r.statusCode > 299 {
		return &StatusError{Code: r.statusCode, Path: r.path, Body: string(r.body)}
	}
	if len(r.body) == 0 {
		return fmt.Errorf("no body returned for %s, status=%d", r.path, r.statusCode)
	}
	if err := json.Unmarshal(r.body, obj); err != nil {
		log.WithField("path", r.path).WithError(err).Error("error unmarshalling inventory response")
		return fmt.Errorf("error unmarshalling %s: %w", r.path, err)
	}
	return nil
}
