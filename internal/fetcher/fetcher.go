package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/logger"
	"github.com/tidwall/gjson"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "followerctl/1.0"

	maxBodySize = 4 << 20
)

// Fetcher reads follower counts. One request per call, no retries.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

type Option func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the current count, or 0 when anything goes wrong. A zero is
// therefore ambiguous between "no followers" and "fetch failed"; the failure
// is only visible in the log.
func (f *Fetcher) Fetch(ctx context.Context, src Source) int64 {
	count, err := f.TryFetch(ctx, src)
	if err != nil {
		logger.WarnWithCode(err).
			Str("url", src.URL).
			Str("kind", string(src.Kind)).
			Msg("Fetch failed, reporting 0")
		return 0
	}

	logger.Debug().
		Str("url", src.URL).
		Int64("count", count).
		Msg("Fetched count")

	return count
}

// TryFetch is Fetch with the failure reported instead of absorbed.
func (f *Fetcher) TryFetch(ctx context.Context, src Source) (int64, error) {
	errFactory := errors.New()

	re, err := src.matcher()
	if err != nil {
		return 0, err
	}

	body, statusErr, err := f.get(ctx, src.URL)
	if err != nil {
		return 0, err
	}

	switch src.Kind {
	case KindJSON:
		// APIs often send their error envelope with a 4xx; prefer its message.
		n, err := extractJSON(src, body)
		if statusErr != nil {
			if err != nil && isAPIStatus(err) {
				return 0, err
			}
			return 0, statusErr
		}
		return n, err
	case KindHTML:
		if statusErr != nil {
			return 0, statusErr
		}
		m := re.FindStringSubmatch(body)
		if m == nil {
			return 0, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "match", Error: "pattern not found"})
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "parse_count", Error: err.Error()})
		}
		return n, nil
	}

	return 0, errFactory.New(errors.ErrInvalidSource)
}

const phaseAPIStatus = "api_status"

type stage struct {
	Phase string
	Error string
}

func (s stage) String() string {
	return fmt.Sprintf("%s: %s", s.Phase, s.Error)
}

// get returns the body even for a non-2xx response; statusErr is then set
// alongside it. err covers failures where no body could be read.
func (f *Fetcher) get(ctx context.Context, rawURL string) (body string, statusErr, err error) {
	errFactory := errors.New()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "build_request", Error: err.Error()})
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "request", Error: err.Error()})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr = errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "status", Error: resp.Status})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if statusErr != nil {
			return "", nil, statusErr
		}
		return "", nil, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "read_body", Error: err.Error()})
	}

	logger.Debug().Str("url", rawURL).Int("status", resp.StatusCode).Int("bytes", len(data)).Msg("Response received")

	return string(data), statusErr, nil
}

func isAPIStatus(err error) bool {
	var coded errors.Error
	if !errors.As(err, &coded) {
		return false
	}
	st, ok := coded.GetData().(stage)
	return ok && st.Phase == phaseAPIStatus
}

func extractJSON(src Source, body string) (int64, error) {
	errFactory := errors.New()

	if !gjson.Valid(body) {
		return 0, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "parse_json", Error: "invalid json"})
	}

	if src.StatusPath != "" {
		status := gjson.Get(body, src.StatusPath)
		if !status.Exists() || status.Int() != src.StatusOK {
			msg := "unexpected status " + status.Raw
			if src.MessagePath != "" {
				if m := gjson.Get(body, src.MessagePath); m.Exists() {
					msg = m.String()
				}
			}
			return 0, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: phaseAPIStatus, Error: msg})
		}
	}

	count := gjson.Get(body, src.CountPath)
	switch count.Type {
	case gjson.Number:
		return count.Int(), nil
	case gjson.String:
		n, err := strconv.ParseInt(count.Str, 10, 64)
		if err == nil {
			return n, nil
		}
	}

	return 0, errFactory.WithData(errors.ErrFetchFailed, stage{Phase: "count_field", Error: "missing or not an integer: " + src.CountPath})
}
