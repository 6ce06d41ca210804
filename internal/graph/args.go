package graph

import (
	"github.com/botobag/artemis/graphql"
)

// stringArg returns the coerced string value of an argument, or "" when the
// argument was not provided.
func stringArg(info graphql.ResolveInfo, name string) string {
	s, _ := info.Args().Get(name).(string)
	return s
}

// intArg returns the coerced int value of an argument, or 0 when the argument
// was not provided.
func intArg(info graphql.ResolveInfo, name string) int {
	i, _ := info.Args().Get(name).(int)
	return i
}

// stringListArg returns the coerced list value of an argument as a string
// slice, skipping any non-string elements.
func stringListArg(info graphql.ResolveInfo, name string) []string {
	switch v := info.Args().Get(name).(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
