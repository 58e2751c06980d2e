package pagegraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vk/pagecost/internal/dag"
	"github.com/vk/pagecost/internal/recording"
)

// Defaults for fetches without usable timing.
const (
	// DefaultThroughput is 1.6 Mbit/s in bytes per second.
	DefaultThroughput = 1.6 * 1024 * 1024 / 8
	DefaultRTT        = 150 * time.Millisecond
)

// ErrNoRecords is returned for a network log without requests.
var ErrNoRecords = errors.New("network log has no records")

// Options controls graph construction.
type Options struct {
	// Throughput in bytes per second for fetches without timing.
	Throughput float64
	// RTT is added to every fetch without timing.
	RTT time.Duration
	// MinTaskDuration drops shorter main-thread tasks.
	MinTaskDuration time.Duration
}

// DefaultOptions returns the options used when the configuration is silent.
func DefaultOptions() Options {
	return Options{
		Throughput:      DefaultThroughput,
		RTT:             DefaultRTT,
		MinTaskDuration: recording.DefaultMinTaskDuration,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Throughput <= 0 {
		o.Throughput = d.Throughput
	}
	if o.RTT < 0 {
		o.RTT = d.RTT
	}
	if o.MinTaskDuration <= 0 {
		o.MinTaskDuration = d.MinTaskDuration
	}
	return o
}

// NetworkNodeID returns the graph id of a request.
func NetworkNodeID(id recording.RequestID) string { return "net:" + string(id) }

// ComputeNodeID returns the graph id of the n-th main-thread task.
func ComputeNodeID(n int) string { return fmt.Sprintf("cpu:%d", n) }

// FetchDuration estimates a fetch of size bytes without observed timing.
func FetchDuration(size int64, opts Options) time.Duration {
	opts = opts.withDefaults()
	transfer := time.Duration(float64(size) / opts.Throughput * float64(time.Second))
	return opts.RTT + transfer
}

// event is a record or a task placed on the shared timeline.
type event struct {
	id     string
	start  time.Duration
	end    time.Duration
	record *recording.NetworkRecord
	task   *recording.Task
	order  int
}

// Build derives the dependency graph of a page load.
//
// The root is the first document request. Each request depends on its
// initiator when the log names one, each main-thread task depends on the
// latest request that finished before it started, and requests without an
// initiator that start after a task ends depend on that task. Anything else
// depends on the root. Every edge points from an earlier to a later event,
// so the graph is acyclic.
func Build(records []*recording.NetworkRecord, tasks []recording.Task, opts Options) (*dag.Graph, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	opts = opts.withDefaults()

	rootRecord := records[0]
	for _, rec := range records {
		if strings.EqualFold(rec.ResourceType, "document") {
			rootRecord = rec
			break
		}
	}

	events := make([]*event, 0, len(records)+len(tasks))
	for _, rec := range records {
		ev := &event{id: NetworkNodeID(rec.RequestID), record: rec}
		if rec.Timed() {
			ev.start, ev.end = rec.Start(), rec.End()
		} else {
			ev.start = rec.Start()
			ev.end = ev.start + FetchDuration(rec.TransferSize, opts)
		}
		events = append(events, ev)
	}
	for i := range tasks {
		t := &tasks[i]
		events = append(events, &event{id: ComputeNodeID(i), start: t.Start, end: t.End(), task: t})
	}

	rootID := NetworkNodeID(rootRecord.RequestID)
	sort.SliceStable(events, func(i, j int) bool {
		if (events[i].id == rootID) != (events[j].id == rootID) {
			return events[i].id == rootID
		}
		return events[i].start < events[j].start
	})

	g := dag.New()
	byID := make(map[string]*event, len(events))
	byURL := make(map[string]*event, len(records))
	for i, ev := range events {
		ev.order = i
		byID[ev.id] = ev
		if ev.record != nil {
			if _, ok := byURL[ev.record.URL]; !ok {
				byURL[ev.record.URL] = ev
			}
		}
		if err := g.AddNode(ev.node()); err != nil {
			return nil, err
		}
	}

	root := events[0]
	for _, ev := range events[1:] {
		dep := root
		switch {
		case ev.record != nil:
			if initiator := initiatorOf(ev, byID, byURL); initiator != nil {
				dep = initiator
			} else if t := latestTaskBefore(events, ev); t != nil {
				dep = t
			}
		case ev.task != nil:
			if n := latestRecordBefore(events, ev); n != nil {
				dep = n
			}
		}
		if err := g.AddEdge(dep.id, ev.id); err != nil {
			return nil, err
		}
	}

	if err := g.Freeze(); err != nil {
		return nil, err
	}
	return g, nil
}

func (ev *event) node() dag.Node {
	base := dag.Base{ID: ev.id, Duration: ev.end - ev.start, Order: ev.order}
	if ev.task != nil {
		return dag.ComputeNode{Base: base, ThreadID: ev.task.ThreadID, Timestamp: ev.task.Start}
	}
	rec := ev.record
	return dag.NetworkNode{
		Base:         base,
		URL:          rec.URL,
		ResourceType: rec.ResourceType,
		AffinityKey:  rec.Origin(),
		TransferSize: rec.TransferSize,
		ResourceSize: rec.ResourceSize,
	}
}

// initiatorOf finds the event named by the record's initiator, first as a
// request id and then as a URL. Only earlier events qualify.
func initiatorOf(ev *event, byID, byURL map[string]*event) *event {
	ref := ev.record.Initiator
	if ref == "" {
		return nil
	}
	initiator, ok := byID[NetworkNodeID(recording.RequestID(ref))]
	if !ok {
		initiator, ok = byURL[ref]
	}
	if !ok || initiator.order >= ev.order {
		return nil
	}
	return initiator
}

// latestTaskBefore returns the task that ended last at or before ev started.
func latestTaskBefore(events []*event, ev *event) *event {
	var best *event
	for _, cand := range events[:ev.order] {
		if cand.task == nil || cand.end > ev.start {
			continue
		}
		if best == nil || cand.end >= best.end {
			best = cand
		}
	}
	return best
}

// latestRecordBefore returns the request that finished last at or before ev
// started.
func latestRecordBefore(events []*event, ev *event) *event {
	var best *event
	for _, cand := range events[:ev.order] {
		if cand.record == nil || cand.end > ev.start {
			continue
		}
		if best == nil || cand.end >= best.end {
			best = cand
		}
	}
	return best
}
