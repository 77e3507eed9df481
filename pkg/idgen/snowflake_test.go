package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflake_RejectsBadWorkerID(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.Error(t, err)
	_, err = NewSnowflake(maxWorkerID + 1)
	assert.Error(t, err)
	assert.Error(t, Init(maxWorkerID+1))
}

func TestSnowflake_UniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(3)
	require.NoError(t, err)

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestNextID_Concurrent(t *testing.T) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{})
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				id := NextID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 8000)
}

func TestGenerators_Prefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateRechargeOrderNo(), "R"))
	no := GenerateTransactionNo()
	assert.True(t, strings.HasPrefix(no, "PTX"))
	assert.NotEqual(t, no, GenerateTransactionNo())
}
