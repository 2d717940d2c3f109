package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Location is a parsed output URL such as s3://bucket/some/prefix.
type Location struct {
	Scheme string
	Bucket string
	// Path is the key prefix inside the bucket, or an absolute path for file://.
	Path string
}

// CheckScheme verifies that raw starts with one of the accepted scheme prefixes.
func CheckScheme(raw string, accepted []string) error {
	for _, prefix := range accepted {
		if prefix != "" && strings.HasPrefix(raw, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q should start with one of %s", ErrUnsupportedScheme, raw, strings.Join(accepted, ", "))
}

// ParseLocation splits raw into scheme, bucket and path.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid output location %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return Location{}, fmt.Errorf("%w: %q has no scheme", ErrUnsupportedScheme, raw)
	}

	loc := Location{Scheme: strings.ToLower(u.Scheme)}
	if loc.Scheme == "file" {
		// file://relative/dir keeps the host as the first path element
		loc.Path = u.Host + u.Path
		if loc.Path == "" {
			return Location{}, fmt.Errorf("invalid output location %q: empty path", raw)
		}
		return loc, nil
	}

	if u.Host == "" {
		return Location{}, fmt.Errorf("invalid output location %q: missing bucket", raw)
	}
	loc.Bucket = u.Host
	loc.Path = strings.Trim(u.Path, "/")
	return loc, nil
}

func (l Location) String() string {
	if l.Scheme == "file" {
		return "file://" + l.Path
	}
	if l.Path == "" {
		return fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Path)
}
