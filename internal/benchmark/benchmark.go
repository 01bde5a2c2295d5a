// Package benchmark times detection runs and compares flat with gnomonic detection.
package benchmark

import (
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"runtime"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/pipeline"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 // Currently allocated bytes
	TotalAllocBytes uint64 // Total allocated bytes (cumulative)
	SysBytes        uint64 // Total bytes from system
	NumGC           uint32 // Number of GC runs
}

// ReadMemoryStats returns current memory statistics.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
	}
}

// Result holds the outcome of one benchmark case.
type Result struct {
	Name       string
	Iterations int
	Durations  []time.Duration
	Mean       time.Duration
	StdDev     time.Duration
	// Objects is the number of objects found by the last iteration.
	Objects int
	// AllocBytes is the memory allocated per iteration on average.
	AllocBytes uint64
	NumGC      uint32
	Err        error
}

// String returns a one line summary.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s: %d iterations, mean: %v, stddev: %v, objects: %d, alloc: %d KB/op",
		r.Name, r.Iterations, r.Mean, r.StdDev, r.Objects, r.AllocBytes/1024)
}

// Func runs one iteration and reports how many objects it found.
type Func func(ctx context.Context) (int, error)

type benchCase struct {
	name string
	fn   Func
}

// Suite manages multiple benchmark cases.
type Suite struct {
	cases   []benchCase
	results []Result
	mu      sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers a case.
func (s *Suite) Add(name string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append(s.cases, benchCase{name: name, fn: fn})
}

// Len returns the number of registered cases.
func (s *Suite) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cases)
}

// Run runs the named case.
func (s *Suite) Run(ctx context.Context, name string, iterations int) Result {
	s.mu.Lock()
	var found *benchCase
	for i := range s.cases {
		if s.cases[i].name == name {
			found = &s.cases[i]
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return Result{Name: name, Err: fmt.Errorf("benchmark '%s' not found", name)}
	}
	return runCase(ctx, *found, iterations)
}

// RunAll runs every case in registration order. A cancelled context stops the
// remaining cases.
func (s *Suite) RunAll(ctx context.Context, iterations int) []Result {
	s.mu.Lock()
	cases := append([]benchCase(nil), s.cases...)
	s.mu.Unlock()

	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		results = append(results, runCase(ctx, c, iterations))
	}

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()
	return results
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func runCase(ctx context.Context, c benchCase, iterations int) Result {
	if iterations < 1 {
		iterations = 1
	}
	res := Result{Name: c.name, Iterations: iterations}

	runtime.GC()
	before := ReadMemoryStats()
	for range iterations {
		start := time.Now()
		n, err := c.fn(ctx)
		if err != nil {
			res.Err = err
			break
		}
		res.Durations = append(res.Durations, time.Since(start))
		res.Objects = n
	}
	after := ReadMemoryStats()

	if done := len(res.Durations); done > 0 {
		res.AllocBytes = (after.TotalAllocBytes - before.TotalAllocBytes) / uint64(done)
		res.Iterations = done
	}
	res.NumGC = after.NumGC - before.NumGC

	secs := make([]float64, len(res.Durations))
	for i, d := range res.Durations {
		secs[i] = d.Seconds()
	}
	if len(secs) > 0 {
		mean, std := stat.MeanStdDev(secs, nil)
		if len(secs) == 1 {
			std = 0
		}
		res.Mean = time.Duration(mean * float64(time.Second))
		res.StdDev = time.Duration(std * float64(time.Second))
	}
	return res
}

// Detector is the part of the pipeline a projection benchmark drives.
type Detector interface {
	DetectWith(ctx context.Context, img image.Image, opts pipeline.DetectOptions) ([]detector.DetectedObject, error)
}

// AddProjectionCases registers name/flat and name/gnomonic, detecting on img with
// the panorama as is and with the sphere projected onto tiles.
func AddProjectionCases(s *Suite, det Detector, name string, img image.Image) {
	for _, gnomonic := range []bool{false, true} {
		label := name + "/flat"
		if gnomonic {
			label = name + "/gnomonic"
		}
		s.Add(label, func(ctx context.Context) (int, error) {
			objects, err := det.DetectWith(ctx, img, pipeline.DetectOptions{Gnomonic: &gnomonic})
			return len(objects), err
		})
	}
}

// WriteReport prints results as an aligned table.
func WriteReport(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CASE\tITER\tMEAN\tSTDDEV\tOBJECTS\tALLOC/OP\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%d\t%d KB\t%s\n",
			r.Name, r.Iterations, r.Mean.Round(time.Microsecond), r.StdDev.Round(time.Microsecond),
			r.Objects, r.AllocBytes/1024, errText)
	}
	return tw.Flush()
}

// WriteCSV writes results with durations in milliseconds.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"case", "iterations", "mean_ms", "stddev_ms", "objects", "alloc_bytes", "error"}); err != nil {
		return err
	}
	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 3, 64)
	}
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		row := []string{
			r.Name, strconv.Itoa(r.Iterations), ms(r.Mean), ms(r.StdDev),
			strconv.Itoa(r.Objects), strconv.FormatUint(r.AllocBytes, 10), errText,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
