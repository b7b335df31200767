package progresspub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

func TestEventCanonicalizesAliasAndFillsTimestamp(t *testing.T) {
	b := bus.NewFakeBus()
	p := New(b, "progress-event", "crawler")

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan model.ProgressEvent, 1)
	go b.Subscribe(ctx, "progress-event", 10, func(ctx context.Context, m *bus.Message) {
		var evt model.ProgressEvent
		json.Unmarshal(m.Data, &evt)
		received <- evt
		m.Ack()
		cancel()
	})

	err := p.Event(context.Background(), model.ProgressEvent{Event: "crawled", TaskID: "t1", URL: "http://a.test/"})
	require.NoError(t, err)

	evt := <-received
	assert.Equal(t, model.EventURLCrawled, evt.Event)
	assert.Equal(t, "crawler", evt.NodeType)
	assert.NotEmpty(t, evt.Timestamp, "expected timestamp to be filled in")
}
