package storage

import (
	"io"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore holds uploaded media (speaking audio, writing files) and
// catalog-owned media (listening audio, images).
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	SignedURL(key string) (string, error) // absolute URL a client can fetch
}
