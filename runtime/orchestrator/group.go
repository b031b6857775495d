package orchestrator

import (
	"sync"

	"github.com/viant/hybrid/model"
)

// group collects the outcomes of the execution stage sub-operations. Every
// operation reports at most once; later reports are ignored.
type group struct {
	mu         sync.Mutex
	operations []*model.Operation
	reported   []bool
	cost       float64
	commandSet []string
}

func newGroup(commands []string) *group {
	ret := &group{
		operations: make([]*model.Operation, len(commands)),
		reported:   make([]bool, len(commands)),
		commandSet: commands,
	}
	for i, command := range commands {
		ret.operations[i] = &model.Operation{Index: i, Command: command}
	}
	return ret
}

// markDone records the outcome of operation index.
func (g *group) markDone(index int, output interface{}, cost float64, err *model.Error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reported[index] {
		return
	}
	g.reported[index] = true
	op := g.operations[index]
	op.Output = output
	op.Error = err
	g.cost += cost
}

// report returns the execution report. Operations that never reported are
// marked with err, used when the stage ends before every branch returned.
func (g *group) report(unfinished *model.Error) *model.ExecutionReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	ret := &model.ExecutionReport{}
	for i, op := range g.operations {
		copied := *op
		if !g.reported[i] && unfinished != nil {
			copied.Error = unfinished
		}
		if copied.Error != nil {
			ret.Failed++
		} else {
			ret.Succeeded++
		}
		ret.Operations = append(ret.Operations, &copied)
	}
	return ret
}

func (g *group) commands() []string {
	return g.commandSet
}

// spent returns the cost reported by finished operations.
func (g *group) spent() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cost
}
