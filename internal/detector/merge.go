package detector

import (
	"slices"
	"strings"

	"github.com/MeKo-Tech/panoblur/internal/metrics"
)

// DefaultMinOverlap keeps every cluster.
const DefaultMinOverlap = 1

// labelSet collects distinct non-empty labels. Labels already joined with ':' are
// split so that merging merged objects again does not duplicate names.
type labelSet map[string]struct{}

func (s labelSet) add(v string) {
	for _, part := range strings.Split(v, ":") {
		if part != "" {
			s[part] = struct{}{}
		}
	}
}

func (s labelSet) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return strings.Join(keys, ":")
}

// Merge coalesces overlapping detections into clusters.
//
// Each unconsumed object seeds a cluster; the scan over later objects restarts after
// every absorption because a grown box may reach objects skipped earlier. The result
// therefore depends on input order. A cluster is kept when the number of absorbed
// objects plus all of their descendants is at least minOverlap. Labels and statuses
// become the sorted, colon-joined set of the absorbed values, and children are merged
// recursively with a minimum overlap of 1.
func Merge(objects []DetectedObject, minOverlap int) []DetectedObject {
	out := merge(objects, minOverlap)
	metrics.MergeClusters.Add(float64(len(out)))
	return out
}

func merge(objects []DetectedObject, minOverlap int) []DetectedObject {
	used := make([]bool, len(objects))
	var out []DetectedObject

	for i := range objects {
		if used[i] {
			continue
		}
		used[i] = true

		area := objects[i].Area
		classes, falsePositives := labelSet{}, labelSet{}
		autoStatuses, manualStatuses := labelSet{}, labelSet{}
		absorb := func(o DetectedObject) {
			classes.add(o.ClassName)
			falsePositives.add(o.FalsePositive)
			autoStatuses.add(o.AutoStatus)
			manualStatuses.add(o.ManualStatus)
		}

		absorb(objects[i])
		children := slices.Clone(objects[i].Children)
		count := 1

		for j := i + 1; j < len(objects); j++ {
			if used[j] || !area.MergeIfOverlap(objects[j].Area) {
				continue
			}
			absorb(objects[j])
			children = append(children, objects[j].Children...)
			used[j] = true
			count++
			j = i
		}

		for _, c := range children {
			count += c.Count()
		}
		if count < minOverlap {
			continue
		}

		out = append(out, DetectedObject{
			ClassName:     classes.String(),
			Area:          area,
			FalsePositive: falsePositives.String(),
			AutoStatus:    autoStatuses.String(),
			ManualStatus:  manualStatuses.String(),
			Children:      merge(children, DefaultMinOverlap),
		})
	}
	return out
}
