package tieout

import (
	"math"
	"sort"
	"strings"

	"capaudit/internal/audit"
	"capaudit/internal/textutil"
)

// Thresholds control fuzzy name matching and share comparison.
type Thresholds struct {
	// NameMatchThreshold is the minimum similarity for a fuzzy name match.
	NameMatchThreshold float64
	// NameMatchMargin is how far the best candidate must beat the runner-up.
	NameMatchMargin float64
	// ShareTolerance is the absolute share difference treated as equal.
	ShareTolerance float64
}

// DefaultThresholds match the pipeline configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{NameMatchThreshold: 0.92, NameMatchMargin: 0.05, ShareTolerance: 0.5}
}

type position struct {
	displayName string
	shares      float64
	duplicate   bool
}

// Compare reconciles a Carta export against the generated cap table and
// returns discrepancies as issues. An empty result means the tables tie out.
func Compare(carta []Shareholder, generated []audit.CapTableEntry, thresholds Thresholds) []audit.Issue {
	var found []audit.Issue

	genNames, genByName := buildLookup(len(generated), func(i int) (string, float64) {
		return generated[i].Shareholder, generated[i].Shares
	})
	cartaNames, cartaByName := buildLookup(len(carta), func(i int) (string, float64) {
		return carta[i].Name, carta[i].Shares
	})

	for _, name := range duplicateNames(genNames, genByName) {
		found = append(found, audit.Issue{
			Severity: audit.SeverityWarning,
			Category: "Cap Table Tie-Out",
			Description: "Generated cap table has duplicate shareholder entries for \"" +
				genByName[name].displayName + "\". Shares were aggregated before matching.",
		})
	}
	for _, name := range duplicateNames(cartaNames, cartaByName) {
		found = append(found, audit.Issue{
			Severity: audit.SeverityWarning,
			Category: "Cap Table Tie-Out",
			Description: "Carta cap table has duplicate shareholder entries for \"" +
				cartaByName[name].displayName + "\". Shares were aggregated before matching.",
		})
	}

	matched := map[string]bool{}
	for _, cartaName := range cartaNames {
		entry := cartaByName[cartaName]
		match := bestMatch(cartaName, genNames, thresholds)
		if match == "" {
			found = append(found, audit.Issue{
				Severity: audit.SeverityWarning,
				Category: "Cap Table Tie-Out",
				Description: grouper.Sprintf("Shareholder %q appears in Carta cap table (%.0f shares) but was not found in source documents.",
					entry.displayName, entry.shares),
			})
			continue
		}
		matched[match] = true
		genShares := genByName[match].shares
		if math.Abs(entry.shares-genShares) > thresholds.ShareTolerance {
			found = append(found, audit.Issue{
				Severity: audit.SeverityCritical,
				Category: "Cap Table Tie-Out",
				Description: grouper.Sprintf("Share mismatch for %q: Carta=%.0f, source=%.0f.",
					entry.displayName, entry.shares, genShares),
			})
		}
	}

	for _, genName := range genNames {
		if matched[genName] {
			continue
		}
		entry := genByName[genName]
		found = append(found, audit.Issue{
			Severity: audit.SeverityWarning,
			Category: "Cap Table Tie-Out",
			Description: grouper.Sprintf("%q in source documents (%.0f shares) not in Carta.",
				entry.displayName, entry.shares),
		})
	}

	cartaTotal := 0.0
	for _, entry := range carta {
		cartaTotal += entry.Shares
	}
	genTotal := 0.0
	for _, entry := range generated {
		genTotal += entry.Shares
	}
	if math.Abs(cartaTotal-genTotal) > thresholds.ShareTolerance {
		found = append(found, audit.Issue{
			Severity: audit.SeverityCritical,
			Category: "Cap Table Tie-Out",
			Description: grouper.Sprintf("Total share mismatch: Carta=%.0f, source=%.0f.",
				cartaTotal, genTotal),
		})
	}

	return found
}

// normalizeName strips the punctuation Carta and legal documents disagree on.
func normalizeName(name string) string {
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(strings.Fields(cleaned), " ")
}

// buildLookup aggregates entries by normalized name, keeping insertion order
// and the first-seen display name.
func buildLookup(count int, at func(int) (string, float64)) ([]string, map[string]*position) {
	var names []string
	byName := map[string]*position{}
	for i := 0; i < count; i++ {
		rawName, shares := at(i)
		name := normalizeName(rawName)
		if name == "" {
			continue
		}
		if existing, seen := byName[name]; seen {
			existing.shares += shares
			existing.duplicate = true
			continue
		}
		byName[name] = &position{displayName: rawName, shares: shares}
		names = append(names, name)
	}
	return names, byName
}

func duplicateNames(names []string, byName map[string]*position) []string {
	var duplicates []string
	for _, name := range names {
		if byName[name].duplicate {
			duplicates = append(duplicates, name)
		}
	}
	sort.Strings(duplicates)
	return duplicates
}

// bestMatch finds the candidate for a name. An exact normalized match always
// wins; otherwise the best fuzzy candidate must clear the threshold and beat
// the runner-up by the margin.
func bestMatch(name string, candidates []string, thresholds Thresholds) string {
	if name == "" || len(candidates) == 0 {
		return ""
	}
	for _, candidate := range candidates {
		if candidate == name {
			return candidate
		}
	}

	type scored struct {
		name  string
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		ranked = append(ranked, scored{name: candidate, score: textutil.Ratio(name, candidate)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	best := ranked[0]
	second := 0.0
	if len(ranked) > 1 {
		second = ranked[1].score
	}
	if best.score >= thresholds.NameMatchThreshold && best.score-second >= thresholds.NameMatchMargin {
		return best.name
	}
	return ""
}
