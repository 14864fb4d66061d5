package config

import (
	"cmp"
	"slices"

	"github.com/memrook/askdocs/internal/core"
)

// namespaceRank orders module namespaces so that foundational modules load
// before the modules that consume their services. The Telegram channel loads
// last since it immediately produces traffic for everything beneath it.
var namespaceRank = map[string]int{
	"analytics":     0,
	"observability": 1,
	"provider":      2,
	"ingest":        3,
	"session":       4,
	"gateway":       5,
	"maintenance":   6,
	"channel":       7,
}

// Resolve returns module IDs from the configuration in deterministic load
// order: namespace rank first, then lexical within a namespace.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		ra, rb := rankOf(a), rankOf(b)
		if ra != rb {
			return cmp.Compare(ra, rb)
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rankOf(id string) int {
	if r, ok := namespaceRank[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return len(namespaceRank)
}
