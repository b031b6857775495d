package fs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/service/dao"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv, err := New(ctx, t.TempDir())
	require.NoError(t, err)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := []*model.Run{
		{ID: "r2", Task: &model.Task{ID: "t2", Description: "restart"}, Target: model.TargetOperator, State: model.RunFailed, CreatedAt: created.Add(time.Minute)},
		{
			ID: "r1", Task: &model.Task{ID: "t1", Description: "plan"}, Target: model.TargetHybrid, State: model.RunAwaitingApproval,
			ResumeState: model.RunExecuting, CreatedAt: created,
			Plan:      &model.Plan{Summary: "s", Steps: []string{"uptime"}},
			Stages:    []*model.Stage{{Kind: model.StagePlanning, Backend: "claude", Status: model.StageSucceeded}},
			Approvals: []*model.ApprovalRef{{RequestID: "a1", Approver: "ops"}},
		},
	}
	for _, r := range runs {
		require.NoError(t, srv.Save(ctx, r))
	}
	assert.ErrorIs(t, srv.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, srv.Save(ctx, &model.Run{}), dao.ErrInvalidID)

	loaded, err := srv.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.RunExecuting, loaded.ResumeState)
	assert.Equal(t, []string{"uptime"}, loaded.Plan.Steps)
	assert.Equal(t, "ops", loaded.PendingApprovals()[0].Approver)

	testCases := []struct {
		name       string
		parameters []*dao.Parameter
		expect     []string
	}{
		{name: "all ordered by creation", expect: []string{"r1", "r2"}},
		{name: "by state", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, string(model.RunFailed))}, expect: []string{"r2"}},
		{name: "by task", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamTaskID, "t1")}, expect: []string{"r1"}},
		{name: "by target", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamTarget, "assistant")}, expect: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := srv.List(ctx, tc.parameters...)
			require.NoError(t, err)
			var ids []string
			for _, r := range list {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tc.expect, ids)
		})
	}

	require.NoError(t, srv.Delete(ctx, "r2"))
	_, err = srv.Load(ctx, "r2")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	assert.ErrorIs(t, srv.Delete(ctx, "r2"), dao.ErrNotFound)
}
