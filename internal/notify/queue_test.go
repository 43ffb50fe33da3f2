package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_NotifyAndDismiss(t *testing.T) {
	q := NewQueue(0)
	q.Notify(LevelError, "Error", "Failed to accept invitation")
	q.Notify(LevelSuccess, "Saved", "")

	items := q.List()
	require.Len(t, items, 2)
	assert.Equal(t, LevelError, items[0].Level)
	assert.NotEmpty(t, items[0].ID)

	assert.True(t, q.Dismiss(items[0].ID))
	assert.False(t, q.Dismiss(items[0].ID))
	assert.Len(t, q.List(), 1)
}

func TestQueue_DropsOldestOverLimit(t *testing.T) {
	q := NewQueue(2)
	q.Notify(LevelInfo, "one", "")
	q.Notify(LevelInfo, "two", "")
	q.Notify(LevelInfo, "three", "")

	items := q.List()
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].Title)
	assert.Equal(t, "three", items[1].Title)
}
