package middleware

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlacklistTokenLifecycle(t *testing.T) {
	BlacklistToken("tok-live", time.Now().Add(time.Hour))
	BlacklistToken("tok-stale", time.Now().Add(-time.Hour))

	assert.True(t, IsTokenBlacklisted("tok-live"))
	assert.True(t, IsTokenBlacklisted("tok-stale"))
	assert.False(t, IsTokenBlacklisted("tok-unknown"))

	sweepBlacklist(time.Now())
	assert.True(t, IsTokenBlacklisted("tok-live"))
	assert.False(t, IsTokenBlacklisted("tok-stale"))
}

// Logout handlers, request auth checks, and the hourly sweep all touch the
// blacklist from their own goroutines; run them together so the race
// detector can see any unguarded access.
func TestBlacklistConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i)
			for j := 0; j < 100; j++ {
				BlacklistToken(token, time.Now().Add(time.Minute))
				IsTokenBlacklisted(token)
				sweepBlacklist(time.Now().Add(2 * time.Minute))
			}
		}(i)
	}
	wg.Wait()
}
