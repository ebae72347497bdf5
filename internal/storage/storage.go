package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// URI schemes served by this package
const (
	SchemeContent = "content"
	SchemeFile    = "file"
)

// ErrInvalidURI is returned when a URI does not match the source's scheme or key format
var ErrInvalidURI = errors.New("invalid input uri")

// keyFromURI returns everything after "<scheme>://"
func keyFromURI(uri, scheme string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return "", fmt.Errorf("%w: expected %s:// got %q", ErrInvalidURI, scheme, uri)
	}
	key := strings.TrimPrefix(u.Host+u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty key in %q", ErrInvalidURI, uri)
	}
	return key, nil
}

// contentIDFromURI parses content://<uuid>
func contentIDFromURI(uri string) (uuid.UUID, error) {
	key, err := keyFromURI(uri, SchemeContent)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid content ID: %v", ErrInvalidURI, err)
	}
	return id, nil
}

// ContentURI builds the URI a job uses to reference stored content
func ContentURI(id uuid.UUID) string {
	return SchemeContent + "://" + id.String()
}
