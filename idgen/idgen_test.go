package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/demaxmin/config"
)

func TestSnowflakeGeneratorIsUniqueAndIncreasing(t *testing.T) {
	g, err := NewGenerator(config.SnowflakeConfig{Type: "snowflake", MachineID: 3})
	require.NoError(t, err)

	prev := int64(0)
	for range 1000 {
		id := g.Generate()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	_, err := NewGenerator(config.SnowflakeConfig{Type: "uuid"})
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewGenerator(config.SnowflakeConfig{Type: "sonyflake", MachineID: 70000})
	require.ErrorIs(t, err, ErrInvalidMachineID)

	_, err = NewGenerator(config.SnowflakeConfig{Type: "sonyflake", StartTime: "yesterday"})
	require.ErrorIs(t, err, ErrParseTime)
}

func TestSonyflakeGenerator(t *testing.T) {
	g, err := NewGenerator(config.SnowflakeConfig{Type: "sonyflake", MachineID: 7, StartTime: "2024-01-01"})
	require.NoError(t, err)
	assert.Positive(t, g.Generate())
}

func TestPrefixedIDsAreUniqueUnderConcurrency(t *testing.T) {
	const workers, perWorker = 8, 200

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				id := GenProblemID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.True(t, strings.HasPrefix(GenSolutionID(), SolutionPrefix))
	assert.True(t, strings.HasPrefix(GenBatchID(), BatchPrefix))
}
