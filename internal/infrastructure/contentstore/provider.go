package contentstore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// Opener builds the underlying store. It is called at most once per successful open.
type Opener func() (*Store, error)

// Provider owns the process-wide store handle. The store is opened on first use
// and shared afterwards; concurrent first callers wait for the same open. A
// failed open is not cached, so the next call tries again.
type Provider struct {
	open Opener

	mu     sync.Mutex
	store  *Store
	closed bool
}

func NewProvider(cfg Config) *Provider {
	return NewProviderWithOpener(func() (*Store, error) { return Open(cfg) })
}

func NewProviderWithOpener(open Opener) *Provider {
	return &Provider{open: open}
}

// Store returns the shared handle, opening it if needed.
func (p *Provider) Store() (*Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil {
		return p.store, nil
	}
	if p.closed {
		return nil, errProviderClosed
	}
	store, err := p.open()
	if err != nil {
		return nil, err
	}
	p.store = store
	return store, nil
}

func (p *Provider) Add(ctx context.Context, data []byte) (cid.Cid, error) {
	store, err := p.Store()
	if err != nil {
		return cid.Undef, err
	}
	return store.Add(ctx, data)
}

func (p *Provider) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	store, err := p.Store()
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, id)
}

// Close releases the handle if it was ever opened.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}
