package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hengadev/phiguard/internal/phierr"
)

// Router sends uploads to the default backend and every other call to the
// backend named by the caller.
type Router struct {
	defaultType Type
	providers   map[Type]Provider
}

// NewRouter builds a router. The first provider whose type equals
// defaultType receives uploads.
func NewRouter(defaultType Type, providers ...Provider) (*Router, error) {
	r := &Router{defaultType: defaultType, providers: make(map[Type]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	if _, ok := r.providers[defaultType]; !ok {
		return nil, phierr.NewInvalidArgumentError("storage type", fmt.Sprintf("no provider configured for default %q", defaultType))
	}
	return r, nil
}

// DefaultType is the backend new uploads go to.
func (r *Router) DefaultType() Type {
	return r.defaultType
}

func (r *Router) provider(t Type) (Provider, error) {
	if t == "" {
		t = r.defaultType
	}
	p, ok := r.providers[t]
	if !ok {
		return nil, phierr.NewInvalidArgumentError("storage type", fmt.Sprintf("no provider configured for %q", t))
	}
	return p, nil
}

// Upload stores an object in the default backend.
func (r *Router) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	return r.providers[r.defaultType].Upload(ctx, in)
}

// GenerateDownloadURL issues a link from the backend that holds key.
func (r *Router) GenerateDownloadURL(ctx context.Context, key string, ttl time.Duration, filename string, storageType Type) (*DownloadURL, error) {
	p, err := r.provider(storageType)
	if err != nil {
		return nil, err
	}
	return p.GenerateDownloadURL(ctx, key, ttl, filename)
}

// Delete removes key from the backend that holds it.
func (r *Router) Delete(ctx context.Context, key string, storageType Type) error {
	p, err := r.provider(storageType)
	if err != nil {
		return err
	}
	return p.Delete(ctx, key)
}
