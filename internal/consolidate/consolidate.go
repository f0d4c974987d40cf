// Package consolidate partitions an item batch into duplicate groups and
// merges each group into one record.
package consolidate

import (
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/fingerprint"
	"github.com/sells-group/quote-cli/internal/model"
)

// Group is one duplicate group of the input batch.
type Group struct {
	// Members are input item ids in first-seen order.
	Members []string `json:"members"`
	// Primary is the id of the member whose scalar fields survive.
	Primary string `json:"primary"`
}

// Result is the output of one consolidation pass.
type Result struct {
	Items  []model.Item `json:"items"`
	Groups []Group      `json:"groups"`
	// MergedInto maps every input id to the id of the record that now
	// carries it. Ids of primaries map to themselves.
	MergedInto map[string]string `json:"merged_into"`
}

// Merged returns how many groups had more than one member.
func (r *Result) Merged() int {
	n := 0
	for _, g := range r.Groups {
		if len(g.Members) > 1 {
			n++
		}
	}
	return n
}

// Consolidator merges duplicate items.
type Consolidator struct {
	engine *fingerprint.Engine
}

// New creates a Consolidator around a fingerprint engine.
func New(engine *fingerprint.Engine) *Consolidator {
	return &Consolidator{engine: engine}
}

// Consolidate groups items by exact key, then by key compatibility (blank
// fields on one side ignored) or probable-duplicate similarity, taking the transitive closure of both relations: if A~B and
// B~C then A, B and C form one group. Groups are emitted in first-seen
// order. The input is not modified.
func (c *Consolidator) Consolidate(items []model.Item) *Result {
	log := zap.L().With(zap.String("component", "consolidate"), zap.Int("items", len(items)))

	uf := newUnionFind(len(items))

	byKey := make(map[fingerprint.Key]int, len(items))
	for i, it := range items {
		if !fingerprint.Keyed(it) {
			continue
		}
		k := c.engine.Key(it)
		if j, ok := byKey[k]; ok {
			uf.union(i, j)
			continue
		}
		byKey[k] = i
	}

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if c.engine.Compatible(items[i], items[j]) || c.engine.Probable(items[i], items[j]) {
				uf.union(i, j)
			}
		}
	}

	// Collect members per root in first-seen order.
	var roots []int
	members := make(map[int][]int)
	for i := range items {
		r := uf.find(i)
		if _, ok := members[r]; !ok {
			roots = append(roots, r)
		}
		members[r] = append(members[r], i)
	}

	res := &Result{
		Items:      make([]model.Item, 0, len(roots)),
		Groups:     make([]Group, 0, len(roots)),
		MergedInto: make(map[string]string, len(items)),
	}
	for _, r := range roots {
		idx := members[r]
		group := make([]model.Item, len(idx))
		for k, i := range idx {
			group[k] = items[i]
		}

		merged := merge(group)
		g := Group{Primary: merged.ID}
		for _, it := range group {
			g.Members = append(g.Members, it.ID)
			res.MergedInto[it.ID] = merged.ID
		}
		res.Items = append(res.Items, merged)
		res.Groups = append(res.Groups, g)

		if len(group) > 1 {
			log.Debug("merged duplicate group",
				zap.String("primary", merged.ID),
				zap.Int("members", len(group)),
				zap.Int("quantity", merged.Quantity),
			)
		}
	}

	log.Info("consolidation complete",
		zap.Int("groups", len(res.Groups)),
		zap.Int("merged_groups", res.Merged()),
	)
	return res
}

// Identity returns a result that keeps every item as its own group. It is
// used when duplicate merging is switched off.
func Identity(items []model.Item) *Result {
	res := &Result{
		Items:      model.CloneItems(items),
		Groups:     make([]Group, 0, len(items)),
		MergedInto: make(map[string]string, len(items)),
	}
	for _, it := range items {
		res.Groups = append(res.Groups, Group{Members: []string{it.ID}, Primary: it.ID})
		res.MergedInto[it.ID] = it.ID
	}
	return res
}
