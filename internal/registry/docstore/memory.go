package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// InMemoryPinner hashes content locally instead of uploading it. The hash is
// content-derived like a real pin, so integrity checks behave identically.
type InMemoryPinner struct {
	mu     sync.Mutex
	stored map[string][]byte

	// Err, when set, fails every pin. Used to test partial-failure handling.
	Err error
}

func NewInMemoryPinner() *InMemoryPinner {
	return &InMemoryPinner{stored: make(map[string][]byte)}
}

func (p *InMemoryPinner) PinFile(ctx context.Context, name string, content []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	hash := fmt.Sprintf("Qm%x", crypto.Keccak256(content)[:16])
	p.stored[hash] = append([]byte(nil), content...)
	return hash, nil
}

// Content returns the stored bytes for a hash, for test assertions.
func (p *InMemoryPinner) Content(hash string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.stored[hash]
	return b, ok
}

var _ Pinner = (*InMemoryPinner)(nil)
