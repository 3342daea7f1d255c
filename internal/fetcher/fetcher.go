package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stwalsh4118/zoning-engine/internal/logger"
	"github.com/stwalsh4118/zoning-engine/internal/models"
)

var errEmptyBody = errors.New("empty response body")
var errBodyTooLarge = errors.New("response body exceeds limit")

// RawContent is an unparsed ordinance document.
type RawContent struct {
	Body        []byte
	ContentType string
	SourceURL   string
	Hash        string
	FetchedAt   time.Time
	// Calls is the number of HTTP requests made to assemble Body.
	Calls int
}

// Fetcher retrieves raw ordinance documents.
type Fetcher interface {
	// Fetch GETs every configured URL in order and concatenates the bodies.
	// All failures are returned as *FetchError.
	Fetch(ctx context.Context, source models.OrdinanceSource) (*RawContent, error)
}

// Options configures the HTTP fetcher.
type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

type httpFetcher struct {
	client       *resty.Client
	maxBodyBytes int64
	log          *logger.Logger
	now          func() time.Time
}

// New creates a Fetcher backed by resty. Retries are disabled.
func New(opts Options, log *logger.Logger) Fetcher {
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/html, text/plain, application/json;q=0.9, */*;q=0.5")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &httpFetcher{
		client:       client,
		maxBodyBytes: opts.MaxBodyBytes,
		log:          log,
		now:          time.Now,
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, source models.OrdinanceSource) (*RawContent, error) {
	if len(source.URLs) == 0 {
		return nil, &FetchError{Kind: KindMalformed, Err: errors.New("no source urls configured")}
	}

	started := f.now()
	raw := &RawContent{SourceURL: source.URLs[0], FetchedAt: started}

	var combined bytes.Buffer
	for i, url := range source.URLs {
		body, contentType, err := f.get(ctx, url, source.Headers)
		raw.Calls++
		if err != nil {
			f.log.Warn("Ordinance fetch failed", map[string]interface{}{
				"url":   url,
				"error": err.Error(),
			})
			return nil, err
		}

		if i == 0 {
			raw.ContentType = contentType
		} else {
			combined.WriteByte('\n')
		}
		combined.Write(body)
	}

	raw.Body = combined.Bytes()
	raw.Hash = models.ContentHash(raw.Body)

	f.log.Debug("Ordinance fetched", map[string]interface{}{
		"source_url":  raw.SourceURL,
		"bytes":       len(raw.Body),
		"calls":       raw.Calls,
		"duration_ms": f.now().Sub(started).Milliseconds(),
	})

	return raw, nil
}

func (f *httpFetcher) get(ctx context.Context, url string, headers map[string]string) ([]byte, string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, "", classify(url, err)
	}

	rawBody := resp.RawBody()
	defer rawBody.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, "", &FetchError{Kind: KindStatus, URL: url, StatusCode: resp.StatusCode()}
	}

	body, err := io.ReadAll(io.LimitReader(rawBody, f.maxBodyBytes+1))
	if err != nil {
		return nil, "", classify(url, err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, "", &FetchError{Kind: KindMalformed, URL: url, StatusCode: resp.StatusCode(), Err: errBodyTooLarge}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, "", &FetchError{Kind: KindMalformed, URL: url, StatusCode: resp.StatusCode(), Err: errEmptyBody}
	}

	return body, resp.Header().Get("Content-Type"), nil
}

func classify(url string, err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimeout, URL: url, Err: err}
	}
	return &FetchError{Kind: KindNetwork, URL: url, Err: fmt.Errorf("request failed: %w", err)}
}
