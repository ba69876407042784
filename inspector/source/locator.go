package source

import (
	"path"
	"sort"
	"strings"
)

// Locator maps fully qualified class names to project relative paths using PSR-4 prefixes.
type Locator struct {
	prefixes []string
	dirs     map[string]string
}

// NewLocator creates a locator from namespace prefix to directory, e.g. {`App\`: "app"}.
func NewLocator(psr4 map[string]string) *Locator {
	ret := &Locator{dirs: make(map[string]string, len(psr4))}
	for prefix, dir := range psr4 {
		prefix = strings.Trim(prefix, `\`) + `\`
		ret.dirs[prefix] = strings.TrimSuffix(dir, "/")
		ret.prefixes = append(ret.prefixes, prefix)
	}
	// longest prefix wins
	sort.Slice(ret.prefixes, func(i, j int) bool {
		if len(ret.prefixes[i]) != len(ret.prefixes[j]) {
			return len(ret.prefixes[i]) > len(ret.prefixes[j])
		}
		return ret.prefixes[i] < ret.prefixes[j]
	})
	return ret
}

// Path returns the source path of class, if a prefix matches.
func (l *Locator) Path(class string) (string, bool) {
	class = strings.TrimPrefix(class, `\`)
	for _, prefix := range l.prefixes {
		if !strings.HasPrefix(class, prefix) {
			continue
		}
		rest := strings.ReplaceAll(strings.TrimPrefix(class, prefix), `\`, "/")
		return path.Join(l.dirs[prefix], rest+".php"), true
	}
	return "", false
}
