package multierr

import "strings"

type Err []error

func (me Err) Error() string {
	var builder strings.Builder
	for i, err := range me {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(err.Error())
	}
	return builder.String()
}

func (me Err) Len() int {
	return len(me)
}

func (me *Err) Add(err error) {
	*me = append(*me, err)
}

// Unwrap lets errors.Is and errors.As look through every collected error
func (me Err) Unwrap() []error {
	return me
}

// Err returns nil when nothing was collected, so that a nil slice is never
// returned as a non-nil error
func (me Err) Err() error {
	if len(me) == 0 {
		return nil
	}
	return me
}
