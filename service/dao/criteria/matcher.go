// Package criteria evaluates dao.Parameter filters.
package criteria

import (
	"github.com/viant/hybrid/service/dao"
)

// Field returns the value of a named field and whether the entity has it.
type Field func(name string) (string, bool)

// Matches reports whether every parameter accepts the corresponding field
// value. Parameters naming unknown fields are ignored.
func Matches(field Field, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		value, ok := field(parameter.Name)
		if !ok {
			continue
		}
		if !accepts(parameter.Value, value) {
			return false
		}
	}
	return true
}

// FilterByState reports whether state is accepted by the State parameter.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	return Matches(func(name string) (string, bool) {
		return state, name == dao.ParamState
	}, parameters)
}

func accepts(expected interface{}, value string) bool {
	switch actual := expected.(type) {
	case string:
		return value == actual
	case []string:
		for _, candidate := range actual {
			if value == candidate {
				return true
			}
		}
		return false
	}
	return true
}
