package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite(t *testing.T) {
	var testCases = []struct {
		description string
		path        func(t *testing.T) string
	}{
		{description: "file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "audit", "events.db") }},
		{description: "memory", path: func(*testing.T) string { return ":memory:" }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			db, err := OpenSQLite(testCase.path(t))
			require.NoError(t, err)
			defer db.Close()
			ctx := context.Background()

			approval := NewEvent(KindApproval, "t1", "r1", "high_priority_approval", "ops", "approved").WithMetadata("approver", "slack://ops-channel")
			approval.ApprovedBy = "alice"
			require.NoError(t, db.Record(ctx, NewEvent(KindStage, "t1", "r1", "planning", "assistant", "completed")))
			require.NoError(t, db.Record(ctx, approval))
			require.NoError(t, db.Record(ctx, NewEvent(KindStage, "t2", "r2", "planning", "assistant", "completed")))

			events, err := db.Events(ctx, "r1")
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, "planning", events[0].Name)
			assert.Nil(t, events[0].Metadata)
			assert.Equal(t, KindApproval, events[1].Kind)
			assert.Equal(t, "alice", events[1].ApprovedBy)
			assert.Equal(t, "slack://ops-channel", events[1].Metadata["approver"])
			assert.True(t, approval.Timestamp.Equal(events[1].Timestamp))

			events, err = db.Events(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}
