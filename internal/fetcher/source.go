package fetcher

import (
	"fmt"
	"net/url"
	"regexp"

	"codeberg.org/mutker/followerctl/internal/errors"
)

// Kind selects how a response body is turned into a count.
type Kind string

const (
	KindJSON Kind = "json"
	KindHTML Kind = "html"
)

const (
	PresetBilibili   = "bilibili"
	PresetXiaoyuzhou = "xiaoyuzhou"

	bilibiliStatURL  = "https://api.bilibili.com/x/relation/stat?vmid=%s&jsonp=jsonp"
	bilibiliSpaceURL = "https://space.bilibili.com/%s"
	xiaoyuzhouMarker = `digit">`
)

// Source describes one remote counter: where to read it and how to extract it.
type Source struct {
	Kind Kind
	URL  string

	// JSON sources. Paths use gjson syntax.
	CountPath   string
	StatusPath  string
	StatusOK    int64
	MessagePath string

	// HTML sources. Pattern, when set, must have one capture group around the digits.
	Marker  string
	Pattern string
}

// Validate reports a malformed descriptor before any network access happens.
func (s Source) Validate() error {
	_, err := s.matcher()
	return err
}

func (s Source) matcher() (*regexp.Regexp, error) {
	errFactory := errors.New()

	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errFactory.WithData(errors.ErrInvalidSource, fmt.Sprintf("url %q", s.URL))
	}

	switch s.Kind {
	case KindJSON:
		if s.CountPath == "" {
			return nil, errFactory.WithData(errors.ErrInvalidSource, "json source without count_path")
		}
		return nil, nil
	case KindHTML:
		if s.Pattern != "" {
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				return nil, errFactory.Wrap(errors.ErrInvalidSource, err)
			}
			if re.NumSubexp() < 1 {
				return nil, errFactory.WithData(errors.ErrInvalidSource, "pattern needs a capture group")
			}
			return re, nil
		}
		if s.Marker == "" {
			return nil, errFactory.WithData(errors.ErrInvalidSource, "html source without marker or pattern")
		}
		return regexp.MustCompile(regexp.QuoteMeta(s.Marker) + `([0-9]+)`), nil
	default:
		return nil, errFactory.WithData(errors.ErrInvalidSource, fmt.Sprintf("kind %q", s.Kind))
	}
}

// Preset builds the source and profile link for a known site. For bilibili the
// id is the user's vmid; for xiaoyuzhou it is the podcast page URL.
func Preset(name, id string) (Source, string, error) {
	switch name {
	case PresetBilibili:
		if id == "" {
			return Source{}, "", errors.New().WithData(errors.ErrInvalidSource, "bilibili preset needs an id")
		}
		return Source{
			Kind:        KindJSON,
			URL:         fmt.Sprintf(bilibiliStatURL, url.QueryEscape(id)),
			CountPath:   "data.follower",
			StatusPath:  "code",
			StatusOK:    0,
			MessagePath: "message",
		}, fmt.Sprintf(bilibiliSpaceURL, id), nil
	case PresetXiaoyuzhou:
		return Source{
			Kind:   KindHTML,
			URL:    id,
			Marker: xiaoyuzhouMarker,
		}, id, nil
	default:
		return Source{}, "", errors.New().WithData(errors.ErrInvalidSource, fmt.Sprintf("unknown preset %q", name))
	}
}
