package reqvalue

import (
	"fmt"
	"strconv"

	"github.com/hanpama/fedreq/internal/language"
)

// ParseLiteral parses a GraphQL input value literal into a Value. Object
// fields keep their source order and literal kinds are preserved, so `1`
// parses as Int, `1.0` as Float and `ADMIN` as Enum.
func ParseLiteral(src string) (Value, error) {
	av, err := language.ParseValue(src)
	if err != nil {
		return Value{}, err
	}
	return FromAST(av)
}

// FromAST converts a parsed literal. Variables are rejected: a requirement
// value is always fully resolved.
func FromAST(av *language.Value) (Value, error) {
	if av == nil {
		return Null(), nil
	}
	switch av.Kind {
	case language.NullValue:
		return Null(), nil
	case language.IntValue:
		n, err := strconv.ParseInt(av.Raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("reqvalue: int literal %q: %w", av.Raw, err)
		}
		return Int(n), nil
	case language.FloatValue:
		f, err := strconv.ParseFloat(av.Raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("reqvalue: float literal %q: %w", av.Raw, err)
		}
		return Float(f), nil
	case language.StringValue, language.BlockValue:
		return String(av.Raw), nil
	case language.BooleanValue:
		return Bool(av.Raw == "true"), nil
	case language.EnumValue:
		return Enum(av.Raw), nil
	case language.ListValue:
		elems := make([]Value, len(av.Children))
		for i, c := range av.Children {
			ev, err := FromAST(c.Value)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return List(elems...), nil
	case language.ObjectValue:
		fields := make([]Field, len(av.Children))
		for i, c := range av.Children {
			fv, err := FromAST(c.Value)
			if err != nil {
				return Value{}, err
			}
			fields[i] = Field{Name: c.Name, Value: fv}
		}
		return Object(fields...), nil
	case language.Variable:
		return Value{}, fmt.Errorf("reqvalue: variable $%s is not a resolved value", av.Raw)
	default:
		return Value{}, fmt.Errorf("reqvalue: unsupported literal kind %d", av.Kind)
	}
}

// MustParse is ParseLiteral for literals known to be valid. It panics on
// error and is meant for tests and static tables.
func MustParse(src string) Value {
	v, err := ParseLiteral(src)
	if err != nil {
		panic(err)
	}
	return v
}
