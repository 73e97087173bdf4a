// Package streamsource implements C1: connecting to an Icecast/Shoutcast
// HTTP stream and handing its raw compressed-audio bytes onward as they
// arrive, the way the teacher's audio package piped a live upload into
// ffmpeg's stdin.
package streamsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source streams compressed audio bytes from an Icecast/Shoutcast URL.
// Callers Read() from it like any io.Reader; Close tears down the
// underlying HTTP connection.
type Source struct {
	resp       *http.Response
	body       io.ReadCloser
	WallOrigin time.Time // server Date header at connect time, the stream's origin instant
	ContentType string
}

// Connect opens the HTTP stream and captures the server's Date header as
// the wall-clock origin for frame-to-timestamp math in C5.
func Connect(ctx context.Context, url string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Icy-MetaData", "0")
	req.Header.Set("User-Agent", "momo-streamkeeper/1.0")

	client := &http.Client{Timeout: 0} // streaming body, no overall deadline
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	dateHdr := resp.Header.Get("Date")
	origin, err := http.ParseTime(dateHdr)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("missing or unparseable Date header %q: %w", dateHdr, err)
	}

	return &Source{
		resp:        resp,
		body:        resp.Body,
		WallOrigin:  origin.UTC(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (s *Source) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

func (s *Source) Close() error {
	return s.body.Close()
}
