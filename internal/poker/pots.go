package poker

import "sort"

// Contribution is one seat's chips put in over the whole hand.
type Contribution struct {
	Seat   int
	Amount int64
	Live   bool
}

type Pot struct {
	Amount   int64
	Eligible []int
}

// BuildPots layers the pot by the distinct contribution levels of live
// seats. Folded chips count toward every layer they reached but never
// make a seat eligible. Folded chips above the top live level go to the
// last pot, so the pots always add up to the total contributed.
func BuildPots(contribs []Contribution) []Pot {
	sorted := append([]Contribution(nil), contribs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seat < sorted[j].Seat })

	levels := make([]int64, 0, len(sorted))
	seen := make(map[int64]struct{})
	var total int64
	for _, c := range sorted {
		total += c.Amount
		if !c.Live || c.Amount <= 0 {
			continue
		}
		if _, ok := seen[c.Amount]; ok {
			continue
		}
		seen[c.Amount] = struct{}{}
		levels = append(levels, c.Amount)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	if len(levels) == 0 {
		if total == 0 {
			return nil
		}
		eligible := make([]int, 0)
		for _, c := range sorted {
			if c.Live {
				eligible = append(eligible, c.Seat)
			}
		}
		return []Pot{{Amount: total, Eligible: eligible}}
	}

	pots := make([]Pot, 0, len(levels))
	var prev, assigned int64
	for _, level := range levels {
		pot := Pot{Eligible: make([]int, 0)}
		for _, c := range sorted {
			pot.Amount += clamp(c.Amount, level) - clamp(c.Amount, prev)
			if c.Live && c.Amount >= level {
				pot.Eligible = append(pot.Eligible, c.Seat)
			}
		}
		assigned += pot.Amount
		pots = append(pots, pot)
		prev = level
	}
	if dead := total - assigned; dead > 0 {
		pots[len(pots)-1].Amount += dead
	}
	return pots
}

func clamp(v, ceiling int64) int64 {
	if v < ceiling {
		return v
	}
	return ceiling
}

// Split divides amount into n shares; the first amount%n shares carry
// one extra chip.
func Split(amount int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	shares := make([]int64, n)
	base := amount / int64(n)
	rem := amount % int64(n)
	for i := range shares {
		shares[i] = base
		if int64(i) < rem {
			shares[i]++
		}
	}
	return shares
}
