// Package keys builds storage keys so single entries, page entries and
// optimistic generations never collide.
package keys

import "strings"

const (
	KindSingle     = "single"
	KindPages      = "pages"
	KindOptimistic = "optimistic"
)

func Single(ns, key string) string     { return join(KindSingle, ns, key) }
func Pages(ns, key string) string      { return join(KindPages, ns, key) }
func Optimistic(ns, key string) string { return join(KindOptimistic, ns, key) }

func join(kind, ns, key string) string {
	var b strings.Builder
	b.Grow(len(kind) + len(ns) + len(key) + 2)
	b.WriteString(kind)
	b.WriteByte(':')
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}

// Split is the inverse of the builders. The user key may itself contain
// colons; namespaces may not.
func Split(storageKey string) (kind, ns, key string, ok bool) {
	kind, rest, ok := strings.Cut(storageKey, ":")
	if !ok {
		return "", "", "", false
	}
	ns, key, ok = strings.Cut(rest, ":")
	if !ok {
		return "", "", "", false
	}
	return kind, ns, key, true
}
