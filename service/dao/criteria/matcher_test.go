package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hybrid/service/dao"
)

func TestMatches(t *testing.T) {
	fields := map[string]string{dao.ParamState: "completed", dao.ParamTaskID: "t1"}
	field := func(name string) (string, bool) {
		v, ok := fields[name]
		return v, ok
	}
	testCases := []struct {
		name       string
		parameters []*dao.Parameter
		expect     bool
	}{
		{name: "no parameters", expect: true},
		{name: "single state", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "completed")}, expect: true},
		{name: "state list", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "failed", "completed")}, expect: true},
		{name: "state mismatch", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "failed")}, expect: false},
		{name: "all must match", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "completed"), dao.NewParameter(dao.ParamTaskID, "t2")}, expect: false},
		{name: "unknown field ignored", parameters: []*dao.Parameter{dao.NewParameter("Owner", "x")}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, Matches(field, tc.parameters))
		})
	}
	assert.True(t, FilterByState("failed", []*dao.Parameter{dao.NewParameter(dao.ParamState, "failed")}))
	assert.False(t, FilterByState("failed", []*dao.Parameter{dao.NewParameter(dao.ParamState, "completed")}))
}
