// Package run holds helpers shared by the run DAOs.
package run

import (
	"sort"

	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/service/dao"
	"github.com/viant/hybrid/service/dao/criteria"
)

// Matches reports whether aRun satisfies the List parameters
// (dao.ParamState, dao.ParamTaskID, dao.ParamTarget).
func Matches(aRun *model.Run, parameters []*dao.Parameter) bool {
	return criteria.Matches(func(name string) (string, bool) {
		switch name {
		case dao.ParamState:
			return string(aRun.State), true
		case dao.ParamTaskID:
			if aRun.Task == nil {
				return "", true
			}
			return aRun.Task.ID, true
		case dao.ParamTarget:
			return string(aRun.Target), true
		}
		return "", false
	}, parameters)
}

// SortByCreation orders runs by creation time, then ID.
func SortByCreation(runs []*model.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
}
