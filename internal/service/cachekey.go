package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/bllfield/intelliwatt-costengine/internal/tdsp"
	"github.com/bllfield/intelliwatt-costengine/internal/usage"
)

// UsageHash digests the monthly bucket table. Any landed usage change
// produces a different digest, so stale cached estimates can never be
// served against fresh data.
func UsageHash(res *usage.Result) string {
	h := sha256.New()
	for _, ym := range res.YearMonths {
		row := res.Rows[ym]
		fmt.Fprintf(h, "%s|", ym)
		if row.Unresolvable {
			fmt.Fprintf(h, "unresolvable=%s;", row.UnresolvableReason)
			continue
		}
		keys := make([]string, 0, len(row.Buckets))
		for k := range row.Buckets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%.6f;", k, row.Buckets[k])
		}
		if row.Stitched {
			fmt.Fprint(h, "stitched;")
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CacheKey composes the estimate cache key. Every input that can change
// the estimate participates: estimator version, window length, annual
// usage, the delivery tuple, the rate structure content, and the usage
// table itself.
func CacheKey(versionTag string, monthsCount int, annualKWh *float64, delivery tdsp.DeliveryRates, structureHash, usageHash string) string {
	annual := "none"
	if annualKWh != nil {
		annual = strconv.FormatFloat(*annualKWh, 'f', 6, 64)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s",
		versionTag, monthsCount, annual, delivery.Tuple(), structureHash, usageHash)
	return hex.EncodeToString(h.Sum(nil))
}
