// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package restore

import (
	"fmt"
	"sort"

	"github.com/jinkaiteo/edms-sub000/internal/model"
)

// Tier is one rank of the dependency order: model types in the same tier
// have no unresolved dependencies on each other and may be prefetched by
// independent workers.
type Tier []string

// DeferredFields maps a model type to the reference fields that participate
// in a dependency cycle and must be patched in a second pass after every
// cycle member exists.
type DeferredFields map[string][]string

// TopoOrder computes a tiered topological ordering of the given model types
// by declared dependency, with explicit cycle detection. Self-references and
// cycles do not fail the sort: the offending reference fields are returned
// as deferred, to be patched once all participants exist.
func TopoOrder(types []string) ([]Tier, DeferredFields, error) {
	present := map[string]bool{}
	for _, t := range types {
		if _, ok := model.TypeByName(t); !ok {
			return nil, nil, fmt.Errorf("unknown model type in package: %s", t)
		}
		present[t] = true
	}

	deferred := DeferredFields{}
	deps := map[string]map[string]bool{}
	for _, t := range types {
		ti, _ := model.TypeByName(t)
		deps[t] = map[string]bool{}
		for _, d := range ti.DependsOn {
			if !present[d] {
				continue // dependency type absent from package; nothing to order against
			}
			if d == t {
				// Self-cycle: defer the fields that point back at this type.
				for field, target := range ti.RefFields {
					if target == t {
						deferred[t] = append(deferred[t], field)
					}
				}
				continue
			}
			deps[t][d] = true
		}
	}

	var tiers []Tier
	done := map[string]bool{}
	remaining := len(deps)
	for remaining > 0 {
		var tier Tier
		for t, ds := range deps {
			if done[t] {
				continue
			}
			ready := true
			for d := range ds {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				tier = append(tier, t)
			}
		}
		if len(tier) == 0 {
			// Cross-type cycle. Break it at the member with the fewest
			// outstanding dependencies and defer its in-cycle references.
			t := pickCycleBreak(deps, done)
			ti, _ := model.TypeByName(t)
			for field, target := range ti.RefFields {
				if !done[target] && target != t {
					deferred[t] = append(deferred[t], field)
				}
			}
			tier = Tier{t}
		}
		sort.Strings(tier)
		for _, t := range tier {
			done[t] = true
			remaining--
		}
		tiers = append(tiers, tier)
	}
	for t := range deferred {
		sort.Strings(deferred[t])
	}
	return tiers, deferred, nil
}

func pickCycleBreak(deps map[string]map[string]bool, done map[string]bool) string {
	best := ""
	bestOutstanding := -1
	for t, ds := range deps {
		if done[t] {
			continue
		}
		outstanding := 0
		for d := range ds {
			if !done[d] {
				outstanding++
			}
		}
		if bestOutstanding == -1 || outstanding < bestOutstanding || (outstanding == bestOutstanding && t < best) {
			best = t
			bestOutstanding = outstanding
		}
	}
	return best
}
