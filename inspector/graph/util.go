package graph

import "strconv"

func itoa(i int) string {
	return strconv.Itoa(i)
}

func stringify(v any) string {
	switch actual := v.(type) {
	case string:
		return actual
	case int64:
		return strconv.FormatInt(actual, 10)
	case float64:
		return strconv.FormatFloat(actual, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(actual)
	case nil:
		return ""
	}
	return ""
}
