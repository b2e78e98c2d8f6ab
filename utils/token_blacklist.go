package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

var (
	// token hash -> expiry, used when Redis is not configured
	blacklist   = map[string]time.Time{}
	blacklistMu sync.RWMutex
)

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// BlacklistToken revokes a token until its natural expiration.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	key := tokenKey(token)
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, "t2t:jwt:blacklist:"+key, "1", ttl).Err(); err == nil {
			return
		}
	}
	blacklistMu.Lock()
	blacklist[key] = expiresAt
	blacklistMu.Unlock()
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(token string) bool {
	key := tokenKey(token)
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, "t2t:jwt:blacklist:"+key).Result()
		if err == nil && n > 0 {
			return true
		}
		// fall through to the local map; fail open on Redis errors
	}

	blacklistMu.RLock()
	exp, ok := blacklist[key]
	blacklistMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		blacklistMu.Lock()
		delete(blacklist, key)
		blacklistMu.Unlock()
		return false
	}
	return true
}
