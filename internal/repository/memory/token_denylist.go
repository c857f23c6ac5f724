package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// TokenDenylist tracks revoked session token ids (jti claims) until the
// token would have expired on its own. A token id on the list must fail
// resolution even though its signature and expiry are still valid.
type TokenDenylist struct {
	cache *cache.Cache
}

func NewTokenDenylist() *TokenDenylist {
	// Entries carry their own TTL (remaining token lifetime); the janitor
	// purges expired ones every 10 minutes.
	c := cache.New(cache.NoExpiration, 10*time.Minute)
	return &TokenDenylist{
		cache: c,
	}
}

// Revoke marks a token id as revoked for the given remaining lifetime.
// Nothing to keep once the token itself has expired.
func (d *TokenDenylist) Revoke(tokenId string, until time.Time) {
	ttl := time.Until(until)
	if ttl <= 0 {
		return
	}
	d.cache.Set(tokenId, struct{}{}, ttl)
}

func (d *TokenDenylist) IsRevoked(tokenId string) bool {
	_, found := d.cache.Get(tokenId)
	return found
}
