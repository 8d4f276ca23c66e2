package payment

import (
	"context"
	"time"

	"github.com/drsullivan13/weather-server/internal/cache"
)

// CachingVerifier remembers accepted credentials so repeat calls from the
// same payer skip the upstream verifier. Rejections and outages are never
// cached. An entry lives no longer than the credential itself.
type CachingVerifier struct {
	next  Verifier
	cache *cache.Cache[Payer]
}

// NewCachingVerifier wraps next with a cache of up to maxEntries accepted
// credentials, each kept for at most ttl.
func NewCachingVerifier(next Verifier, ttl time.Duration, maxEntries int) *CachingVerifier {
	return &CachingVerifier{
		next:  next,
		cache: cache.New[Payer](ttl, maxEntries),
	}
}

func (v *CachingVerifier) Verify(ctx context.Context, credential string) (*Payer, error) {
	key := cache.HashKey(credential)
	if payer, ok := v.cache.Get(key); ok {
		return &payer, nil
	}

	payer, err := v.next.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}

	v.cache.SetUntil(key, *payer, payer.Expires)
	return payer, nil
}
