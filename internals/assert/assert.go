package assert

import "fmt"

func Assert(condition bool, msg string, other ...any) {
	if !condition {
		panic(fmt.Sprint(append([]any{msg}, other...)...))
	}
}

func AssertNil(value any, msg string, other ...any) {
	Assert(value == nil, msg, append(other, value)...)
}
