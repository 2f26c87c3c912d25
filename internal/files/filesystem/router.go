package filesystem

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Router dispatches s3:// names to an object-store provider and everything
// else to the local provider. The S3 provider is built on first use.
type Router struct {
	local Provider

	s3Once    sync.Once
	s3        Provider
	s3Err     error
	newRemote func() (Provider, error)
}

// NewRouter routes local paths to local and s3:// URLs to an S3FileSystem
// configured from the environment.
func NewRouter(local Provider) *Router {
	return NewRouterWith(local, func() (Provider, error) {
		return NewS3FileSystem(S3ConfigFromEnv())
	})
}

// NewRouterWith uses newRemote to build the s3:// provider.
func NewRouterWith(local Provider, newRemote func() (Provider, error)) *Router {
	return &Router{local: local, newRemote: newRemote}
}

func (r *Router) pick(name string) (Provider, error) {
	if !strings.HasPrefix(name, S3Scheme) {
		return r.local, nil
	}
	r.s3Once.Do(func() { r.s3, r.s3Err = r.newRemote() })
	return r.s3, r.s3Err
}

func (r *Router) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := r.pick(name)
	if err != nil {
		return nil, err
	}
	return p.Open(ctx, name)
}

func (r *Router) Stat(ctx context.Context, name string) (FileInfo, error) {
	p, err := r.pick(name)
	if err != nil {
		return nil, err
	}
	return p.Stat(ctx, name)
}

func (r *Router) List(ctx context.Context, dir string) ([]string, error) {
	p, err := r.pick(dir)
	if err != nil {
		return nil, err
	}
	return p.List(ctx, dir)
}

var _ Provider = (*Router)(nil)
