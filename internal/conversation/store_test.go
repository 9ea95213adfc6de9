package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisTC "github.com/testcontainers/testcontainers-go/modules/redis"
)

// storeContract runs the Store behaviour every implementation must share
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	s, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = store.Advance(ctx, 1, "a", "x")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	s, err = store.Begin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.OwnerID)
	assert.Equal(t, 0, s.StepIndex)
	assert.Equal(t, 0, s.Answers.Len())

	s, err = store.Advance(ctx, 1, "name", "Ana Souza")
	require.NoError(t, err)
	assert.Equal(t, 1, s.StepIndex)

	s, err = store.Advance(ctx, 1, "age", 29)
	require.NoError(t, err)
	assert.Equal(t, 2, s.StepIndex)

	s, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, []string{"name", "age"}, s.Answers.Keys())
	age, ok := s.Answers.Int("age")
	assert.True(t, ok)
	assert.Equal(t, 29, age)

	// begin overwrites without merging
	s, err = store.Begin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, s.StepIndex)
	s, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Answers.Len())

	require.NoError(t, store.End(ctx, 1))
	require.NoError(t, store.End(ctx, 1))
	s, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore("registration"))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("registration")

	_, err := store.Begin(ctx, 1)
	require.NoError(t, err)
	s, err := store.Advance(ctx, 1, "name", "Ana")
	require.NoError(t, err)

	s.StepIndex = 99
	s.Answers.Set("name", "tampered")

	fresh, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.StepIndex)
	assert.Equal(t, "Ana", fresh.Answers.String("name"))
}

func TestMemoryStore_ConcurrentOwners(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("registration")

	var wg sync.WaitGroup
	for owner := int64(1); owner <= 50; owner++ {
		wg.Add(1)
		go func(owner int64) {
			defer wg.Done()
			_, _ = store.Begin(ctx, owner)
			_, _ = store.Advance(ctx, owner, "k", owner)
		}(owner)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
	for owner := int64(1); owner <= 50; owner++ {
		s, err := store.Get(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 1, s.StepIndex)
	}
}

func TestAnswers_OrderAndJSON(t *testing.T) {
	var a Answers
	a.Set("name", "Ana")
	a.Set("weight", 65.2)
	a.Set("age", 29)
	a.Set("name", "Ana Souza")

	assert.Equal(t, []string{"name", "weight", "age"}, a.Keys())
	assert.Equal(t, "Ana Souza", a.String("name"))

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"name","value":"Ana Souza"},{"key":"weight","value":65.2},{"key":"age","value":29}]`, string(data))

	var decoded Answers
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, a.Keys(), decoded.Keys())

	age, ok := decoded.Int("age")
	assert.True(t, ok)
	assert.Equal(t, 29, age)

	w, ok := decoded.Float("weight")
	assert.True(t, ok)
	assert.InDelta(t, 65.2, w, 0.0001)

	_, ok = decoded.Int("weight")
	assert.False(t, ok, "65.2 is not an integer")

	assert.Equal(t, "", decoded.String("missing"))
}

func TestAnswers_EmptyJSON(t *testing.T) {
	data, err := json.Marshal(Answers{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(42)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Equal(t, 0, km.size(), "unused locks are released")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func setupRedis(t *testing.T) (string, func()) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := redisTC.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "Failed to start Redis container")

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func TestRedisStore_Contract(t *testing.T) {
	url, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	storeContract(t, NewRedisStore(client, "registration", time.Hour))
}

func TestRedisStore_FlowsAreSeparated(t *testing.T) {
	url, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	reg := NewRedisStore(client, "registration", 0)
	quest := NewRedisStore(client, "questionnaire", 0)

	_, err = reg.Begin(ctx, 1)
	require.NoError(t, err)

	s, err := quest.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRedisStore_TTLExpiresSession(t *testing.T) {
	url, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisStore(client, "pantry", time.Second)
	_, err = store.Begin(ctx, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := store.Get(ctx, 1)
		return err == nil && s == nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedisStore_ConcurrentAdvance(t *testing.T) {
	url, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisStore(client, "registration", 0)
	_, err = store.Begin(ctx, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Advance(ctx, 1, "k"+string(rune('a'+i)), i)
		}(i)
	}
	wg.Wait()

	s, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, s.Answers.Len(), s.StepIndex, "every increment has exactly one answer")
}
