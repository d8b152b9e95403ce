package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"storageracks.ai/internal/sim/rack"
)

type SortMode int

const (
	SortNone SortMode = iota
	SortNameAsc
	SortNameDesc
	SortCountAsc
	SortCountDesc
)

var sortModeNames = [...]string{"NONE", "NAME_ASC", "NAME_DESC", "COUNT_ASC", "COUNT_DESC"}

func (m SortMode) String() string {
	if m < 0 || int(m) >= len(sortModeNames) {
		return "UNKNOWN"
	}
	return sortModeNames[m]
}

// Next cycles through the modes in declaration order.
func (m SortMode) Next() SortMode { return (m + 1) % SortMode(len(sortModeNames)) }

// ParseSortMode accepts the names returned by String. The empty string is
// SortNone.
func ParseSortMode(s string) (SortMode, error) {
	if s == "" {
		return SortNone, nil
	}
	for i, n := range sortModeNames {
		if strings.EqualFold(s, n) {
			return SortMode(i), nil
		}
	}
	return SortNone, fmt.Errorf("query: unknown sort mode %q", s)
}

type ListOptions struct {
	// Filter keeps entries whose item id or full key contains it,
	// ignoring case. Empty keeps everything.
	Filter string
	Sort   SortMode
}

type Entry struct {
	Key   rack.ItemKey
	Count int
}

func keyLess(a, b rack.ItemKey) bool {
	if a.Item != b.Item {
		return a.Item < b.Item
	}
	return a.Meta < b.Meta
}

// Listing flattens an aggregate into display rows. SortNone keeps key
// order so the output is deterministic; count sorts break ties by key.
func Listing(all map[rack.ItemKey]int, opts ListOptions) []Entry {
	filter := strings.ToLower(opts.Filter)
	out := make([]Entry, 0, len(all))
	for k, n := range all {
		if filter != "" &&
			!strings.Contains(strings.ToLower(k.Item), filter) &&
			!strings.Contains(strings.ToLower(k.String()), filter) {
			continue
		}
		out = append(out, Entry{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key, out[j].Key) })

	switch opts.Sort {
	case SortNameDesc:
		sort.SliceStable(out, func(i, j int) bool { return keyLess(out[j].Key, out[i].Key) })
	case SortCountAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Count < out[j].Count })
	case SortCountDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	}
	return out
}

var compactSuffixes = []struct {
	div    int64
	suffix string
}{
	{1_000_000_000_000_000_000, "E"},
	{1_000_000_000_000_000, "P"},
	{1_000_000_000_000, "T"},
	{1_000_000_000, "G"},
	{1_000_000, "M"},
	{1_000, "k"},
}

// CompactCount abbreviates n to at most one decimal: 1000 is "1k", 1200 is
// "1.2k" and 13000 is "13k".
func CompactCount(n int64) string {
	if n < 0 {
		if n == -n {
			n++
		}
		return "-" + CompactCount(-n)
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	for _, s := range compactSuffixes {
		if n < s.div {
			continue
		}
		tenths := n / (s.div / 10)
		if tenths < 100 && tenths%10 != 0 {
			return fmt.Sprintf("%d.%d%s", tenths/10, tenths%10, s.suffix)
		}
		return strconv.FormatInt(tenths/10, 10) + s.suffix
	}
	return strconv.FormatInt(n, 10)
}

// ExactCount renders n with thousands separators.
func ExactCount(n int64) string { return humanize.Comma(n) }
