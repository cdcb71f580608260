package app

// clamp clamps v into [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// compute dynamic widths for the pairs table based on available total width
func (m *Model) pairColWidths(total int) (wName, wSite, wProto, wBytes, wBar, wRate, wLat, wTrend int) {
	// fixed minimums (numbers and labels)
	minName, minSite, minProto, minBytes, minRate, minLat, minTrend := 20, 10, 6, 9, 11, 8, 10

	base := minName + minSite + minProto + minBytes + minRate + minLat + minTrend
	remain := total - base
	if remain < 8 {
		remain = 8
	}

	// bar and trend share the flexible space, name takes the remainder
	wBar = remain / 3
	wTrend = minTrend + remain/3
	extra := remain - wBar - (wTrend - minTrend)

	wName = minName + extra
	wSite = minSite
	wProto = minProto
	wBytes = minBytes
	wRate = minRate
	wLat = minLat

	// sanity clamps
	wName = clamp(wName, 16, 60)
	wBar = clamp(wBar, 4, 30)
	wTrend = clamp(wTrend, minTrend, 40)
	return
}

// compute dynamic widths for the services table
func (m *Model) serviceColWidths(total int) (wName, wProto, wListeners, wConnectors int) {
	minProto, minCount := 8, 11
	wProto = minProto
	wListeners = minCount
	wConnectors = minCount
	wName = clamp(total-minProto-2*minCount, 20, 80)
	return
}
