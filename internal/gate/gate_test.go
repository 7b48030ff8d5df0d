package gate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleControl(t *testing.T) {
	g := New(true)

	assert.True(t, g.HandleControl([]byte{0x00}))
	assert.False(t, g.Enabled())

	assert.True(t, g.HandleControl([]byte{0x7F, 0x00}))
	assert.True(t, g.Enabled(), "only the first byte matters")

	assert.True(t, g.HandleControl([]byte{0x00, 0x01}))
	assert.False(t, g.Enabled())
}

func TestHandleControl_EmptyIgnored(t *testing.T) {
	g := New(false)
	assert.False(t, g.HandleControl(nil))
	assert.False(t, g.HandleControl([]byte{}))
	assert.False(t, g.Enabled())
}

func TestGate_ConcurrentWriters(t *testing.T) {
	g := New(true)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				g.SetEnabled((i+j)%2 == 0)
				_ = g.Enabled()
			}
		}(i)
	}
	wg.Wait()
	g.SetEnabled(true)
	assert.True(t, g.Enabled())
}
