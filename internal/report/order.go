package report

import (
	"sort"

	"github.com/ppiankov/evalia/internal/model"
)

// scoreOrder lists the required categories first, then extras alphabetically
func scoreOrder(scores model.Scores) []string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	return orderKeys(keys)
}

func reasoningOrder(reasoning map[string]string) []string {
	keys := make([]string, 0, len(reasoning))
	for k := range reasoning {
		keys = append(keys, k)
	}
	return orderKeys(keys)
}

func orderKeys(keys []string) []string {
	rank := make(map[string]int, len(model.ScoreKeys))
	for i, k := range model.ScoreKeys {
		rank[k] = i
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}
