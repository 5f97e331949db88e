package conditions

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/evofitmeals/evoflow/pkg/models"
	"github.com/spf13/cast"
)

// Match evaluates one condition against an already resolved field value.
// A missing field arrives as nil and compares as an absent value: it equals
// nothing, is contained in nothing and orders against nothing.
func Match(condition models.Condition, fieldValue any) bool {
	switch condition.Operator {
	case models.OperatorEquals:
		return equal(fieldValue, condition.Value)
	case models.OperatorNotEquals:
		return !equal(fieldValue, condition.Value)
	case models.OperatorContains:
		if fieldValue == nil {
			return false
		}

		return strings.Contains(toString(fieldValue), toString(condition.Value))
	case models.OperatorGreaterThan:
		cmp, ok := compare(fieldValue, condition.Value)

		return ok && cmp > 0
	case models.OperatorLessThan:
		cmp, ok := compare(fieldValue, condition.Value)

		return ok && cmp < 0
	case models.OperatorBetween:
		return between(fieldValue, condition.Value)
	case models.OperatorIn:
		list, ok := toList(condition.Value)

		return ok && contains(list, fieldValue)
	case models.OperatorNotIn:
		list, ok := toList(condition.Value)

		return ok && !contains(list, fieldValue)
	default:
		return false
	}
}

// equal is strict: numbers compare by value regardless of their Go type,
// everything else must be deeply equal. "5" never equals 5.
func equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		left, errLeft := cast.ToFloat64E(a)
		right, errRight := cast.ToFloat64E(b)

		return errLeft == nil && errRight == nil && left == right
	}

	return reflect.DeepEqual(a, b)
}

// compare orders two values numerically, or lexically when both are strings
// that are not numbers.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	left, errLeft := cast.ToFloat64E(a)
	right, errRight := cast.ToFloat64E(b)

	if errLeft == nil && errRight == nil {
		switch {
		case left < right:
			return -1, true
		case left > right:
			return 1, true
		default:
			return 0, true
		}
	}

	leftStr, leftIsStr := a.(string)
	rightStr, rightIsStr := b.(string)

	if leftIsStr && rightIsStr {
		return strings.Compare(leftStr, rightStr), true
	}

	return 0, false
}

func between(fieldValue, bounds any) bool {
	list, ok := toList(bounds)
	if !ok || len(list) != 2 {
		return false
	}

	lower, ok := compare(fieldValue, list[0])
	if !ok || lower < 0 {
		return false
	}

	upper, ok := compare(fieldValue, list[1])

	return ok && upper <= 0
}

func contains(list []any, value any) bool {
	for _, item := range list {
		if equal(item, value) {
			return true
		}
	}

	return false
}

// toList accepts any slice or array.
func toList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}

	if list, ok := value.([]any); ok {
		return list, true
	}

	reflected := reflect.ValueOf(value)
	if reflected.Kind() != reflect.Slice && reflected.Kind() != reflect.Array {
		return nil, false
	}

	list := make([]any, reflected.Len())
	for i := range list {
		list[i] = reflected.Index(i).Interface()
	}

	return list, true
}

func toString(value any) string {
	str, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value)
	}

	return str
}

func isNumber(value any) bool {
	if value == nil {
		return false
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
