package chainclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ens "github.com/wealdtech/go-ens/v3"

	"github.com/riskmonitor/engine/internal/errs"
)

// ENSResolver resolves between ENS names and addresses, with a small
// in-memory TTL cache, exactly as internal/web3/ens_resolver.go does.
type ENSResolver struct {
	client Client
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]ensCacheEntry
}

type ensCacheEntry struct {
	address    common.Address
	resolvedAt time.Time
}

// NewENSResolver builds a resolver over an already-dialed chain client.
func NewENSResolver(client Client, ttl time.Duration) *ENSResolver {
	return &ENSResolver{client: client, ttl: ttl, cache: make(map[string]ensCacheEntry)}
}

// Resolve converts an ENS name to its registered address. Unresolved names
// return a Transient error whose message reads "name resolution
// unavailable" rather than NotFound, since the failure
// may be the resolver contract being unreachable rather than the name
// genuinely not existing.
func (r *ENSResolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !isValidENSName(name) {
		return common.Address{}, errs.New(errs.InvalidInput, "chainclient.ENSResolver.Resolve", fmt.Errorf("invalid ENS name: %q", name))
	}

	r.mu.Lock()
	if entry, ok := r.cache[name]; ok && time.Since(entry.resolvedAt) < r.ttl {
		r.mu.Unlock()
		return entry.address, nil
	}
	r.mu.Unlock()

	addr, err := ens.Resolve(r.client.Raw(), name)
	if err != nil {
		return common.Address{}, errs.New(errs.Transient, "chainclient.ENSResolver.Resolve", fmt.Errorf("name resolution unavailable for %q: %w", name, err))
	}

	r.mu.Lock()
	r.cache[name] = ensCacheEntry{address: addr, resolvedAt: time.Now()}
	r.mu.Unlock()
	return addr, nil
}

// ReverseResolve looks up the primary ENS name for an address and verifies
// it forward-resolves back to the same address.
func (r *ENSResolver) ReverseResolve(ctx context.Context, address common.Address) (string, error) {
	name, err := ens.ReverseResolve(r.client.Raw(), address)
	if err != nil {
		return "", errs.New(errs.Transient, "chainclient.ENSResolver.ReverseResolve", err)
	}
	forward, err := ens.Resolve(r.client.Raw(), name)
	if err != nil || forward != address {
		return "", errs.New(errs.Decoding, "chainclient.ENSResolver.ReverseResolve", fmt.Errorf("reverse resolution verification failed for %s", address.Hex()))
	}
	return name, nil
}

var ensTLDs = []string{".eth", ".xyz", ".luxe", ".kred", ".art"}

func isValidENSName(name string) bool {
	if name == "" {
		return false
	}
	hasValidTLD := false
	for _, tld := range ensTLDs {
		if strings.HasSuffix(name, tld) {
			hasValidTLD = true
			break
		}
	}
	if !hasValidTLD {
		return false
	}
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts[:len(parts)-1] {
		if part == "" {
			return false
		}
		for _, r := range part {
			if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
				return false
			}
		}
	}
	return true
}
