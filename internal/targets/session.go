package targets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// maxBody caps how much of a page a procedure reads.
const maxBody = 4 << 20

// Session is the per-attempt resource a procedure runs on. A fresh session is
// opened for every attempt and must be closed before the next one opens.
type Session struct {
	client    *http.Client
	userAgent string
	closed    bool
}

// SessionFactory opens a new Session.
type SessionFactory func() (*Session, error)

// NewSessionFactory returns a factory producing sessions with their own cookie jar.
func NewSessionFactory(timeout time.Duration, userAgent string) SessionFactory {
	return func() (*Session, error) {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		return &Session{
			client: &http.Client{
				Timeout:   timeout,
				Jar:       jar,
				Transport: http.DefaultTransport.(*http.Transport).Clone(),
			},
			userAgent: userAgent,
		}, nil
	}
}

// Close releases the session's idle connections.
func (s *Session) Close() error {
	s.client.CloseIdleConnections()
	s.closed = true
	return nil
}

// page is a fetched response body with the final URL after redirects.
type page struct {
	status int
	url    string
	body   string
}

func (s *Session) do(ctx context.Context, method, target, credential, referer string, form url.Values) (*page, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Cookie", credential)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	return &page{status: resp.StatusCode, url: resp.Request.URL.String(), body: string(data)}, nil
}

func (s *Session) get(ctx context.Context, target, credential, referer string) (*page, error) {
	return s.do(ctx, http.MethodGet, target, credential, referer, nil)
}

func (s *Session) post(ctx context.Context, target, credential, referer string, form url.Values) (*page, error) {
	return s.do(ctx, http.MethodPost, target, credential, referer, form)
}
