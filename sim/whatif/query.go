package whatif

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	percentPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	warehousePattern = regexp.MustCompile(`\b(?:warehouse|kho)\s+([a-z0-9]+)\b`)
	decreaseWords    = []string{"decrease", "reduce", "drop", "fall", "cut", "lower", "giảm"}
)

// ParseQuery turns a free-text question into a Scenario, for example
// "If rain increases 40%, how many more orders are late?" becomes a
// weather_change with multiplier 1.4. A query that names a warehouse
// ("warehouse a") targets warehouse_a. Without a percentage the multiplier
// is 1.
func ParseQuery(query string) (Scenario, error) {
	q := strings.ToLower(query)

	var s Scenario
	switch {
	case containsAny(q, "rain", "precipitation", "weather", "wind", "mưa"):
		s.Type = WeatherChange
	case containsAny(q, "inventory", "stock", "tồn kho"):
		s.Type = InventoryChange
		if m := warehousePattern.FindStringSubmatch(q); m != nil {
			s.WarehouseID = "warehouse_" + m[1]
		}
	case containsAny(q, "demand", "orders per hour", "nhu cầu"):
		s.Type = DemandChange
	default:
		return Scenario{}, fmt.Errorf("no weather, inventory or demand change in %q: %w", query, ErrInvalidScenario)
	}

	s.Multiplier = 1
	if m := percentPattern.FindStringSubmatch(q); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Scenario{}, fmt.Errorf("percentage %q: %w", m[1], ErrInvalidScenario)
		}
		if containsAny(q, decreaseWords...) {
			s.Multiplier = max(0, 1-pct/100)
		} else {
			s.Multiplier = 1 + pct/100
		}
	}
	s.Name = strings.TrimSpace(query)
	return s, nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
