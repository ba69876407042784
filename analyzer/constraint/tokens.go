package constraint

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
)

// Token is one declarative rule with its arguments, e.g. max:255 or in:a,b.
type Token struct {
	Name string
	Args []string
}

// ParseTokens splits a pipe separated rule string into tokens.
func ParseTokens(rules string) []Token {
	var ret []Token
	for _, part := range strings.Split(rules, "|") {
		if token, ok := ParseToken(part); ok {
			ret = append(ret, token)
		}
	}
	return ret
}

// ParseToken parses a single rule such as "between:1,10".
func ParseToken(rule string) (Token, bool) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return Token{}, false
	}
	name, args, found := strings.Cut(rule, ":")
	token := Token{Name: strings.ToLower(strings.TrimSpace(name))}
	if !found {
		return token, true
	}
	if token.Name == "regex" || token.Name == "not_regex" || token.Name == "date_format" {
		token.Args = []string{args}
		return token, true
	}
	for _, arg := range strings.Split(args, ",") {
		token.Args = append(token.Args, strings.Trim(strings.TrimSpace(arg), `"'`))
	}
	return token, true
}

var formatTokens = map[string]string{
	"email":       "email",
	"url":         "uri",
	"active_url":  "uri",
	"uuid":        "uuid",
	"ulid":        "ulid",
	"ip":          "ipv4",
	"ipv4":        "ipv4",
	"ipv6":        "ipv6",
	"date":        "date-time",
	"date_format": "date-time",
	"file":        "binary",
	"image":       "binary",
	"mimes":       "binary",
}

var kindTokens = map[string]string{
	"string":  schema.TypeString,
	"integer": schema.TypeInteger,
	"int":     schema.TypeInteger,
	"numeric": schema.TypeNumber,
	"decimal": schema.TypeNumber,
	"boolean": schema.TypeBoolean,
	"bool":    schema.TypeBoolean,
	"array":   schema.TypeArray,
	"list":    schema.TypeArray,
}

var patternTokens = map[string]string{
	"alpha":       `^[a-zA-Z]+$`,
	"alpha_num":   `^[a-zA-Z0-9]+$`,
	"alpha_dash":  `^[a-zA-Z0-9_-]+$`,
	"lowercase":   `^[^A-Z]*$`,
	"uppercase":   `^[^a-z]*$`,
	"json":        `^[\[{]`,
	"hex_color":   `^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`,
	"mac_address": `^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`,
}

// ignoredTokens carry no schema information: they reference data stores or other fields.
var ignoredTokens = map[string]bool{
	"bail": true, "confirmed": true, "exists": true, "unique": true, "different": true,
	"same": true, "not_in": true, "not_regex": true, "prohibited": true, "exclude": true,
	"required_if": true, "required_unless": true, "required_with": true, "required_without": true,
	"required_with_all": true, "required_without_all": true, "after": true, "before": true,
	"after_or_equal": true, "before_or_equal": true, "dimensions": true, "distinct": true,
	"timezone": true, "current_password": true, "password": true, "declined": true,
}

// FromToken converts a single token into a partial record.
// Unknown tokens yield an empty record and an UnsupportedConstruct issue.
func FromToken(token Token) (*Record, *diag.Error) {
	ret := NewRecord()
	if kind, ok := kindTokens[token.Name]; ok {
		ret.Kind = kind
		return ret, nil
	}
	if format, ok := formatTokens[token.Name]; ok {
		ret.Kind = schema.TypeString
		ret.Format = format
		if token.Name == "date" || token.Name == "date_format" {
			ret.Format = dateFormat(token.Args)
		}
		return ret, nil
	}
	if pattern, ok := patternTokens[token.Name]; ok {
		ret.Kind = schema.TypeString
		ret.Patterns = []string{pattern}
		return ret, nil
	}
	switch token.Name {
	case "required", "filled":
		ret.facts.required = token.Name == "required"
		ret.facts.nonNull = true
	case "present":
		ret.facts.required = true
	case "nullable":
		ret.facts.nullable = true
	case "sometimes":
		ret.facts.sometimes = true
	case "accepted":
		ret.Kind = schema.TypeBoolean
		ret.facts.nonNull = true
	case "min":
		ret.Bounds.Min = number(token.Args, 0)
	case "max":
		ret.Bounds.Max = number(token.Args, 0)
	case "between", "digits_between":
		ret.Bounds.Min, ret.Bounds.Max = number(token.Args, 0), number(token.Args, 1)
		if token.Name == "digits_between" {
			ret.Kind = schema.TypeInteger
			ret.Bounds.Min, ret.Bounds.Max = digitsFloor(ret.Bounds.Min), digitsCeil(ret.Bounds.Max)
		}
	case "size":
		ret.Bounds.Min, ret.Bounds.Max = number(token.Args, 0), number(token.Args, 0)
	case "digits":
		ret.Kind = schema.TypeInteger
		n := number(token.Args, 0)
		ret.Bounds.Min, ret.Bounds.Max = digitsFloor(n), digitsCeil(n)
	case "gt", "gte", "lt", "lte":
		value := number(token.Args, 0)
		if value == nil {
			// comparison against another field
			return ret, nil
		}
		ret.Kind = schema.TypeNumber
		if strings.HasPrefix(token.Name, "g") {
			ret.Bounds.Min, ret.Bounds.ExclusiveMin = value, token.Name == "gt"
		} else {
			ret.Bounds.Max, ret.Bounds.ExclusiveMax = value, token.Name == "lt"
		}
	case "in":
		ret.Enum = append([]string{}, token.Args...)
	case "regex":
		if len(token.Args) > 0 {
			if pattern, ok := Pattern(token.Args[0]); ok {
				ret.Kind = schema.TypeString
				ret.Patterns = []string{pattern}
			}
		}
	case "starts_with":
		ret.Kind = schema.TypeString
		ret.Patterns = []string{affixPattern(token.Args, "^(", ")")}
	case "ends_with":
		ret.Kind = schema.TypeString
		ret.Patterns = []string{affixPattern(token.Args, "(", ")$")}
	default:
		if !ignoredTokens[token.Name] {
			return ret, diag.New(diag.UnsupportedConstruct, "", "unknown rule "+token.Name)
		}
	}
	return ret, nil
}

// Pattern converts a delimited PHP regular expression such as /^[a-z]+$/i to a pattern.
func Pattern(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if len(expr) < 2 {
		return "", false
	}
	delimiter := expr[0]
	end := strings.LastIndexByte(expr, delimiter)
	if end <= 0 {
		return "", false
	}
	pattern := expr[1:end]
	if strings.Contains(expr[end+1:], "i") {
		pattern = "(?i)" + pattern
	}
	return pattern, true
}

func dateFormat(args []string) string {
	if len(args) == 1 && !strings.ContainsAny(args[0], "HisGgAaU") {
		return "date"
	}
	return "date-time"
}

func affixPattern(args []string, prefix, suffix string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = regexp.QuoteMeta(arg)
	}
	return prefix + strings.Join(quoted, "|") + suffix
}

func number(args []string, idx int) *float64 {
	if idx >= len(args) {
		return nil
	}
	value, err := strconv.ParseFloat(args[idx], 64)
	if err != nil {
		return nil
	}
	return &value
}

func digitsFloor(n *float64) *float64 {
	if n == nil || *n < 1 {
		return nil
	}
	if *n == 1 {
		return schema.Float(0)
	}
	return schema.Float(math.Pow(10, *n-1))
}

func digitsCeil(n *float64) *float64 {
	if n == nil || *n < 1 {
		return nil
	}
	return schema.Float(math.Pow(10, *n) - 1)
}
