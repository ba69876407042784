package graph

// Pair is one key/value of an evaluated keyed array, preserving declaration order.
type Pair struct {
	Key   string
	Value any
}

// Pairs is an evaluated keyed array.
type Pairs []Pair

// Get returns the value for key.
func (p Pairs) Get(key string) (any, bool) {
	for _, pair := range p {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return nil, false
}

// Keys returns keys in declaration order.
func (p Pairs) Keys() []string {
	ret := make([]string, len(p))
	for i, pair := range p {
		ret[i] = pair.Key
	}
	return ret
}

// Evaluate statically folds literal expressions into Go values:
// string, int64, float64, bool, nil, []any for lists and Pairs for keyed arrays.
// ClassRef evaluates to its class name. ok is false for anything non-constant.
func Evaluate(e Expr) (any, bool) {
	switch actual := e.(type) {
	case *Literal:
		return actual.Value, true
	case *ClassRef:
		return actual.Class, true
	case *Cast:
		return Evaluate(actual.Value)
	case *ArrayLiteral:
		return evaluateArray(actual)
	}
	return nil, false
}

func evaluateArray(array *ArrayLiteral) (any, bool) {
	keyed := false
	for _, entry := range array.Entries {
		if entry.Spread {
			return nil, false
		}
		if entry.Key != nil {
			keyed = true
		}
	}
	if !keyed {
		list := make([]any, 0, len(array.Entries))
		for _, entry := range array.Entries {
			value, ok := Evaluate(entry.Value)
			if !ok {
				return nil, false
			}
			list = append(list, value)
		}
		return list, true
	}
	pairs := make(Pairs, 0, len(array.Entries))
	for i, entry := range array.Entries {
		key := ""
		if entry.Key == nil {
			key = itoa(i)
		} else {
			k, ok := Evaluate(entry.Key)
			if !ok {
				return nil, false
			}
			key = stringify(k)
		}
		value, ok := Evaluate(entry.Value)
		if !ok {
			return nil, false
		}
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	return pairs, true
}

// StringValue returns the string value of a string literal or class reference.
func StringValue(e Expr) (string, bool) {
	switch actual := e.(type) {
	case *Literal:
		if s, ok := actual.Value.(string); ok {
			return s, true
		}
	case *ClassRef:
		return actual.Class, true
	}
	return "", false
}
