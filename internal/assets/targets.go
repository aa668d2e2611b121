package assets

import (
	"sort"
	"strconv"
	"strings"

	"github.com/The-Ico2/sentinel-wallpaper/internal/config"
	"github.com/The-Ico2/sentinel-wallpaper/internal/monitor"
)

// ResolveTargets maps a profile's selector tokens onto concrete monitors.
// Resolution order is significant: a primary token claims the primary
// monitor first regardless of where it appears, integer tokens then claim
// monitors by stable index in listed order, and a wildcard finally
// appends every remaining monitor in topology order. Monitors already
// assigned by an earlier profile are skipped, and no monitor appears
// twice. An empty result means the profile has nothing left to claim.
func ResolveTargets(monitors []monitor.Area, tokens []string, assigned map[int]bool) []monitor.Area {
	var result []monitor.Area

	if anyToken(tokens, isPrimaryToken) {
		for _, m := range monitors {
			if m.Primary && !assigned[m.Index] {
				result = append(result, m)
				break
			}
		}
	}

	for _, tok := range tokens {
		if isPrimaryToken(tok) || isWildcardToken(tok) {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		m, ok := monitorByIndex(monitors, index)
		if !ok || assigned[m.Index] || hasIndex(result, m.Index) {
			continue
		}
		result = append(result, m)
	}

	if anyToken(tokens, isWildcardToken) {
		for _, m := range monitors {
			if assigned[m.Index] || hasIndex(result, m.Index) {
				continue
			}
			result = append(result, m)
		}
	}

	return result
}

// SpanArea collapses multiple targets into one synthetic area covering
// their bounding union. Primary is inherited from any constituent and
// Index is the smallest constituent index, so the span sorts and
// correlates like its leading monitor.
func SpanArea(targets []monitor.Area) monitor.Area {
	if len(targets) == 0 {
		return monitor.Area{}
	}
	area := monitor.Area{
		Index:   targets[0].Index,
		Primary: targets[0].Primary,
		Rect:    targets[0].Rect,
		Device:  "span",
	}
	for _, t := range targets[1:] {
		area.Rect = area.Rect.Union(t.Rect)
		if t.Primary {
			area.Primary = true
		}
		if t.Index < area.Index {
			area.Index = t.Index
		}
	}
	return area
}

// OrderProfiles sorts profiles into launch order: primary-selecting
// profiles first, explicit integer selections next, wildcard profiles
// last. Order within a class is preserved, so earlier config sections
// keep winning monitor assignment ties.
func OrderProfiles(profiles []config.Profile) []config.Profile {
	out := make([]config.Profile, len(profiles))
	copy(out, profiles)
	sort.SliceStable(out, func(i, j int) bool {
		return selectorPriority(out[i].MonitorSelectors) < selectorPriority(out[j].MonitorSelectors)
	})
	return out
}

// selectorPriority: primary beats explicit indices beats wildcard. A
// profile naming both primary and wildcard counts as primary.
func selectorPriority(tokens []string) int {
	if anyToken(tokens, isPrimaryToken) {
		return 0
	}
	if anyToken(tokens, isWildcardToken) {
		return 2
	}
	return 1
}

func isPrimaryToken(tok string) bool {
	return strings.EqualFold(tok, "p") || strings.EqualFold(tok, "primary")
}

func isWildcardToken(tok string) bool {
	return tok == "*" || strings.EqualFold(tok, "all")
}

func anyToken(tokens []string, match func(string) bool) bool {
	for _, tok := range tokens {
		if match(tok) {
			return true
		}
	}
	return false
}

func monitorByIndex(monitors []monitor.Area, index int) (monitor.Area, bool) {
	for _, m := range monitors {
		if m.Index == index {
			return m, true
		}
	}
	return monitor.Area{}, false
}

func hasIndex(areas []monitor.Area, index int) bool {
	for _, a := range areas {
		if a.Index == index {
			return true
		}
	}
	return false
}
