package metrics

import (
	"math"
	"sort"
	"time"
)

// DriverWindow is the number of most recent days with fills shown on
// per-vehicle views. Days without records are not counted.
const DriverWindow = 7

// Bucket is one calendar-day aggregation unit.
type Bucket struct {
	// Key is the bucket's calendar day at midnight UTC.
	Key time.Time

	// Label is the day rendered as DD/MM.
	Label string

	// Total is the sum of every amount that fell into the bucket.
	Total float64
}

// Series is an ascending, duplicate-free sequence of buckets.
type Series []Bucket

// Sum returns the total across all buckets.
func (s Series) Sum() float64 {
	var total float64
	for _, b := range s {
		total += b.Total
	}
	return total
}

// Max returns the largest bucket total, or 0 for an empty series.
func (s Series) Max() float64 {
	var max float64
	for _, b := range s {
		if b.Total > max {
			max = b.Total
		}
	}
	return max
}

// KeyFunc maps a record timestamp to its bucket key. It reports false when
// the timestamp cannot be keyed.
type KeyFunc func(timestamp string) (time.Time, bool)

// CalendarDay keys a timestamp by its date portion, ignoring time-of-day and
// any zone offset, so "2024-01-01T23:30:00+02:00" lands on January 1st.
func CalendarDay(timestamp string) (time.Time, bool) {
	if len(timestamp) < len("2006-01-02") {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", timestamp[:10])
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// Options controls Aggregate.
type Options struct {
	// Key groups records; CalendarDay when nil.
	Key KeyFunc

	// Window keeps only the most recent N buckets; 0 keeps all.
	Window int
}

// Aggregate sums the amounts of items per bucket key. Only keys present in
// the input produce a bucket; the result is sorted ascending and truncated
// to the trailing window. An item whose amount reports false contributes 0
// but still opens its bucket. An item whose timestamp cannot be keyed is
// skipped.
//
// Amounts are summed in sorted order within a bucket so that the result does
// not depend on the order of items.
func Aggregate[T any](
	items []T,
	timestamp func(T) string,
	amount func(T) (float64, bool),
	opts Options,
) Series {
	if len(items) == 0 {
		return Series{}
	}

	key := opts.Key
	if key == nil {
		key = CalendarDay
	}

	grouped := make(map[time.Time][]float64)
	for _, item := range items {
		k, ok := key(timestamp(item))
		if !ok {
			continue
		}
		v, ok := amount(item)
		if !ok || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		grouped[k] = append(grouped[k], v)
	}

	series := make(Series, 0, len(grouped))
	for k, amounts := range grouped {
		sort.Float64s(amounts)
		var total float64
		for _, v := range amounts {
			total += v
		}
		series = append(series, Bucket{
			Key:   k,
			Label: k.Format("02/01"),
			Total: total,
		})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Key.Before(series[j].Key)
	})

	if opts.Window > 0 && len(series) > opts.Window {
		series = series[len(series)-opts.Window:]
	}
	return series
}
