package assets

import (
	"fmt"
	"sort"
	"strings"
)

// Order returns asset names so that every asset follows the assets its
// @inputs reference. Independent assets are ordered by name.
func (m *Manifest) Order() ([]string, error) {
	graph := make(map[string][]string, len(m.Assets))
	inDegree := make(map[string]int, len(m.Assets))
	for name := range m.Assets {
		inDegree[name] += 0
		for _, ref := range m.Assets[name].Refs() {
			if _, ok := m.Assets[ref]; !ok {
				return nil, fmt.Errorf("%w: asset %s: unknown reference %s%s", ErrInvalidManifest, name, RefPrefix, ref)
			}
			graph[ref] = append(graph[ref], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, d := range inDegree {
		if d == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(m.Assets))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var ready []string
		for _, next := range graph[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		if len(ready) > 0 {
			queue = append(queue, ready...)
			sort.Strings(queue)
		}
	}

	if len(result) != len(m.Assets) {
		var cyclic []string
		for name, d := range inDegree {
			if d > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("%w: asset reference cycle among: %s", ErrInvalidManifest, strings.Join(cyclic, ", "))
	}
	return result, nil
}
