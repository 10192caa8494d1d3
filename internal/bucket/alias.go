package bucket

import (
	"fmt"
	"math"
)

// Aliases returns the accepted alternate spellings for a canonical key.
// The table is deliberately finite: full-day windows may be spelled with
// the explicit 0000-2400 range, and nothing else aliases to anything.
// Callers resolve aliases once per month per key, never ad hoc.
func Aliases(k Key) []string {
	if k.FullDay() {
		return []string{keyPrefix + string(k.DayType) + ".0000-2400"}
	}
	return nil
}

// Resolution is the outcome of resolving one key for one month.
type Resolution struct {
	KWh      float64
	Found    bool
	// SpelledAs is the spelling the value was taken from.
	SpelledAs string
}

// ErrAliasDisagreement marks a month where two spellings of the same bucket
// carry materially different values. The month must be treated as
// unresolvable; averaging the disagreement away would hide bad data.
type ErrAliasDisagreement struct {
	Key    Key
	Values map[string]float64
}

func (e *ErrAliasDisagreement) Error() string {
	return fmt.Sprintf("bucket: alias spellings of %s disagree: %v", e.Key, e.Values)
}

// Resolve picks the value for key k out of a month's raw bucket map, which
// may contain canonical and/or alias spellings. The canonical spelling wins
// when present and consistent. If only aliases are present they must agree
// within epsilonKWh; a material disagreement returns ErrAliasDisagreement.
func Resolve(values map[string]float64, k Key, epsilonKWh float64) (Resolution, error) {
	canonical := k.String()
	found := map[string]float64{}
	if v, ok := values[canonical]; ok {
		found[canonical] = v
	}
	for _, alias := range Aliases(k) {
		if v, ok := values[alias]; ok {
			found[alias] = v
		}
	}
	if len(found) == 0 {
		return Resolution{}, nil
	}

	// All present spellings must agree within epsilon, including the
	// canonical one: a canonical value contradicted by an alias is just as
	// suspect as two disagreeing aliases.
	var ref float64
	var refSpelling string
	first := true
	for _, spelling := range append([]string{canonical}, Aliases(k)...) {
		v, ok := found[spelling]
		if !ok {
			continue
		}
		if first {
			ref, refSpelling, first = v, spelling, false
			continue
		}
		if math.Abs(v-ref) > epsilonKWh {
			return Resolution{}, &ErrAliasDisagreement{Key: k, Values: found}
		}
	}
	return Resolution{KWh: ref, Found: true, SpelledAs: refSpelling}, nil
}
