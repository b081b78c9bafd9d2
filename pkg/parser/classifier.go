package parser

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedRequest means request line has no path token.
var ErrMalformedRequest = errors.New("Malformed request line")

// Classification is result of Classifier.
type Classification struct {
	Path    string
	IsPage  bool
	IsRobot bool
}

// Classifier decides page-vs-asset by extension of request path and
// human-vs-robot by user agent signatures.
type Classifier struct {
	pageExtensions  map[string]struct{}
	robotSignatures []string
}

// NewClassifier creates Classifier. Both extensions and signatures are
// compared case-insensitively.
func NewClassifier(pageExtensions, robotSignatures []string) *Classifier {
	classifier := &Classifier{
		pageExtensions: make(map[string]struct{}),
	}
	for _, ext := range pageExtensions {
		classifier.pageExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	for _, sig := range robotSignatures {
		if sig != "" {
			classifier.robotSignatures = append(classifier.robotSignatures, strings.ToLower(sig))
		}
	}
	return classifier
}

// RequestPath extracts path from request line, e.g. "GET /index.html HTTP/1.1"
func RequestPath(request string) (string, error) {
	tokens := strings.Fields(request)
	if len(tokens) < 2 {
		return "", errors.Wrapf(ErrMalformedRequest, "%q", request)
	}
	return tokens[1], nil
}

// Classify classifies a request. userAgent should be nil if the log format
// has no user agent field, then the request is never a robot.
func (x *Classifier) Classify(request string, userAgent *string) (*Classification, error) {
	path, err := RequestPath(request)
	if err != nil {
		return nil, err
	}

	result := &Classification{
		Path:   path,
		IsPage: x.IsPage(path),
	}
	if userAgent != nil {
		result.IsRobot = x.IsRobot(*userAgent)
	}

	return result, nil
}

// IsPage returns true if final segment of the path has no extension (e.g.
// directory view "/blog/") or the extension is one of page extensions.
func (x *Classifier) IsPage(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	segment := path[strings.LastIndexByte(path, '/')+1:]
	dot := strings.LastIndexByte(segment, '.')
	if dot < 0 {
		return true
	}

	_, ok := x.pageExtensions[strings.ToLower(segment[dot+1:])]
	return ok
}

// IsRobot returns true if user agent contains any robot signature.
func (x *Classifier) IsRobot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, sig := range x.robotSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}
