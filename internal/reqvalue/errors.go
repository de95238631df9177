package reqvalue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidValueShape marks two objects under the same fetch slot whose
// field arity differs. It means the requirement mapper broke its layout
// contract and is fatal to the slot's build.
var ErrInvalidValueShape = errors.New("reqvalue: invalid value shape")

// InvalidShapeError describes an arity mismatch. Path lists the positions
// from the root down to the offending object.
type InvalidShapeError struct {
	Path     []int
	Expected int
	Actual   int
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("%s: object arity %d != %d at %s", ErrInvalidValueShape, e.Actual, e.Expected, formatPath(e.Path))
}

func (e *InvalidShapeError) Unwrap() error { return ErrInvalidValueShape }

func formatPath(p []int) string {
	if len(p) == 0 {
		return "$"
	}
	var sb strings.Builder
	sb.WriteByte('$')
	for _, i := range p {
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte(']')
	}
	return sb.String()
}
