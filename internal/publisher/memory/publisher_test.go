package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsNotifications(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx := context.Background()

	id, err := pub.Publish(ctx, "runs.finished", map[string]string{"run_id": "run-1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = pub.Publish(ctx, "runs.finished", map[string]string{"run_id": "run-2"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	sent := pub.Notifications()
	require.Len(t, sent, 2)
	require.Equal(t, "runs.finished", sent[0].Topic)

	// Notifications returns a copy.
	sent[0].Topic = "mutated"
	require.Equal(t, "runs.finished", pub.Notifications()[0].Topic)
}
