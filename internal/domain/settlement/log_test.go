package settlement

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLog_AppendAndEntries(t *testing.T) {
	log := NewLog()
	assert.Zero(t, log.Len())

	log.Append(CompensationEntry{ProductID: "prod-x", Quantity: 2})
	log.Append(CompensationEntry{ProductID: "prod-y", Quantity: 1})

	assert.Equal(t, 2, log.Len())
	assert.ElementsMatch(t, []CompensationEntry{
		{ProductID: "prod-x", Quantity: 2},
		{ProductID: "prod-y", Quantity: 1},
	}, log.Entries())
}

func TestLog_EntriesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Append(CompensationEntry{ProductID: "prod-x", Quantity: 2})

	entries := log.Entries()
	entries[0].Quantity = 99

	assert.Equal(t, 2, log.Entries()[0].Quantity)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	const writers = 50

	log := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(CompensationEntry{ProductID: "prod-x", Quantity: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, log.Len())
}
