package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRegistryOnlineOfflineLifecycle(t *testing.T) {
	r := NewPresenceRegistry()

	assert.False(t, r.IsOnline(1))
	assert.Empty(t, r.ListOnline())

	r.Register(1, "conn-a")
	assert.True(t, r.IsOnline(1))
	assert.Equal(t, []uint{1}, r.ListOnline())

	r.Unregister(1, "conn-a")
	assert.False(t, r.IsOnline(1))
	assert.Empty(t, r.ListOnline())
}

func TestPresenceRegistryMultiDevice(t *testing.T) {
	r := NewPresenceRegistry()

	r.Register(7, "phone")
	r.Register(7, "laptop")
	assert.True(t, r.IsOnline(7))
	assert.Equal(t, 2, r.ConnectionCount(7))
	// A single user online twice is still one online user.
	assert.Len(t, r.ListOnline(), 1)

	// Losing one of two devices must not report offline.
	r.Unregister(7, "phone")
	assert.True(t, r.IsOnline(7))

	r.Unregister(7, "laptop")
	assert.False(t, r.IsOnline(7))
}

func TestPresenceRegistryUnknownKeysAreNoOps(t *testing.T) {
	r := NewPresenceRegistry()

	r.Unregister(42, "ghost")
	assert.False(t, r.IsOnline(42))

	r.Register(42, "conn")
	r.Unregister(42, "other-conn")
	assert.True(t, r.IsOnline(42), "removing an unknown connection must not affect the live one")
}

func TestPresenceRegistryConcurrentChurn(t *testing.T) {
	r := NewPresenceRegistry()

	const users = 8
	const connsPerUser = 25

	var wg sync.WaitGroup
	for u := uint(1); u <= users; u++ {
		for i := 0; i < connsPerUser; i++ {
			wg.Add(1)
			go func(userID uint, n int) {
				defer wg.Done()
				connID := fmt.Sprintf("conn-%d-%d", userID, n)
				r.Register(userID, connID)
				if n%2 == 0 {
					r.Unregister(userID, connID)
				}
			}(u, i)
		}
	}
	wg.Wait()

	for u := uint(1); u <= users; u++ {
		// Odd-numbered connections stayed open.
		assert.True(t, r.IsOnline(u))
		assert.Equal(t, connsPerUser/2+connsPerUser%2, r.ConnectionCount(u))
	}

	var wg2 sync.WaitGroup
	for u := uint(1); u <= users; u++ {
		for i := 0; i < connsPerUser; i++ {
			if i%2 == 0 {
				continue
			}
			wg2.Add(1)
			go func(userID uint, n int) {
				defer wg2.Done()
				r.Unregister(userID, fmt.Sprintf("conn-%d-%d", userID, n))
			}(u, i)
		}
	}
	wg2.Wait()

	for u := uint(1); u <= users; u++ {
		assert.False(t, r.IsOnline(u), "user %d should be offline after all connections closed", u)
	}
	assert.Empty(t, r.ListOnline())
}
