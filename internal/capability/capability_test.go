package capability

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkbound/novelhost/internal/httpbroker"
)

func TestResourceTable_PutGetDrop(t *testing.T) {
	rt := NewResourceTable()
	h := rt.Put("hello")

	v, ok := rt.Get(h)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	rt.Drop(h)
	_, ok = rt.Get(h)
	assert.False(t, ok)
}

func TestPanicCapture_TakeClears(t *testing.T) {
	pc := &PanicCapture{}
	assert.Nil(t, pc.Take())

	pc.Capture("guest blew up")
	payload := pc.Take()
	require.NotNil(t, payload)
	assert.Equal(t, "guest blew up", *payload)

	assert.Nil(t, pc.Take())
}

func TestTable_TraceIncrementsCallCount(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	table := New(httpbroker.New(nil), log)

	table.Trace("ext-1", TraceInfo, "fetched chapter", map[string]string{"url": "https://example.test"})
	assert.EqualValues(t, 1, table.CallCount())
}
