package consolidate

import (
	"github.com/sells-group/quote-cli/internal/model"
)

// merge folds a duplicate group into one record. Singletons pass through
// unchanged (as a copy).
func merge(group []model.Item) model.Item {
	if len(group) == 1 {
		return group[0].Clone()
	}

	primary := group[primaryIndex(group)]
	out := primary.Clone()

	out.Quantity = 0
	out.Accessories = []string{}
	out.SpecialInstructions = []string{}
	out.Warnings = nil
	out.HasImage = false
	out.HasDuplicate = true

	seenAcc := make(map[string]bool)
	seenInstr := make(map[string]bool)
	for _, it := range group {
		out.Quantity += it.Quantity
		out.HasImage = out.HasImage || it.HasImage
		out.Accessories = unionInto(out.Accessories, seenAcc, it.Accessories)
		out.SpecialInstructions = unionInto(out.SpecialInstructions, seenInstr, it.SpecialInstructions)
		out.Warnings = append(out.Warnings, it.Warnings...)
	}
	return out
}

// primaryIndex picks the member with the most populated optional fields.
// Members are in batch order and ids are assigned in batch order, so a tie
// goes to the earliest id.
func primaryIndex(group []model.Item) int {
	best := 0
	bestScore := group[0].PopulatedOptional()
	for i := 1; i < len(group); i++ {
		if score := group[i].PopulatedOptional(); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func unionInto(dst []string, seen map[string]bool, src []string) []string {
	for _, s := range src {
		if seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}
