package dao

import "strings"

// Run fields a List call can filter on.
const (
	ParamState  = "State"
	ParamTaskID = "TaskID"
	ParamTarget = "Target"
)

// Parameter restricts List to records whose Name field equals Value, or any
// of Value when it holds several candidates.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter builds a filter; a single value is stored as a string.
func NewParameter(name string, values ...string) *Parameter {
	switch len(values) {
	case 1:
		return &Parameter{Name: name, Value: values[0]}
	default:
		return &Parameter{Name: name, Value: values}
	}
}

// String renders the filter as name=v1|v2.
func (p *Parameter) String() string {
	switch actual := p.Value.(type) {
	case string:
		return p.Name + "=" + actual
	case []string:
		return p.Name + "=" + strings.Join(actual, "|")
	}
	return p.Name
}
