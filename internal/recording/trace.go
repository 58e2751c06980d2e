package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// DefaultMinTaskDuration is the shortest main-thread task that becomes a
// compute node.
const DefaultMinTaskDuration = 10 * time.Millisecond

const mainThreadName = "CrRendererMain"

// TraceEvent is one event in the trace event format. Ts and Dur are in
// microseconds.
type TraceEvent struct {
	Name string         `json:"name"`
	Cat  string         `json:"cat,omitempty"`
	Ph   string         `json:"ph"`
	Ts   float64        `json:"ts"`
	Dur  float64        `json:"dur,omitempty"`
	Pid  int            `json:"pid"`
	Tid  int            `json:"tid"`
	Args map[string]any `json:"args,omitempty"`
}

// Start returns the event timestamp.
func (e TraceEvent) Start() time.Duration { return micros(e.Ts) }

// End returns the timestamp at which a complete event ends.
func (e TraceEvent) End() time.Duration { return micros(e.Ts + e.Dur) }

func micros(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}

// Trace is a parsed performance trace.
type Trace struct {
	Events []TraceEvent `json:"traceEvents"`
}

// Task is a top-level main-thread task.
type Task struct {
	Name     string
	ThreadID int
	Start    time.Duration
	Duration time.Duration
}

// End returns Start + Duration.
func (t Task) End() time.Duration { return t.Start + t.Duration }

// ParseTrace decodes a trace in either the object form
// {"traceEvents": [...]} or as a bare array of events.
func ParseTrace(r io.Reader) (*Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("trace is empty")
	}

	trace := &Trace{}
	if data[0] == '[' {
		err = json.Unmarshal(data, &trace.Events)
	} else {
		err = json.Unmarshal(data, trace)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return trace, nil
}

type threadKey struct{ pid, tid int }

// mainThread picks the renderer main thread: the thread named CrRendererMain
// if the trace has thread metadata, otherwise the thread with the most time
// in complete events.
func (t *Trace) mainThread() (threadKey, bool) {
	busy := map[threadKey]float64{}
	for _, e := range t.Events {
		if e.Ph == "M" && e.Name == "thread_name" {
			if name, _ := e.Args["name"].(string); name == mainThreadName {
				return threadKey{e.Pid, e.Tid}, true
			}
		}
		if e.Ph == "X" {
			busy[threadKey{e.Pid, e.Tid}] += e.Dur
		}
	}

	var best threadKey
	found := false
	for k, total := range busy {
		if !found || total > busy[best] || (total == busy[best] && (k.pid < best.pid || (k.pid == best.pid && k.tid < best.tid))) {
			best, found = k, true
		}
	}
	return best, found
}

// MainThreadTasks returns the top-level complete events on the main thread
// that last at least minDuration, in start order. Events nested inside an
// earlier task are part of that task and are not returned.
func (t *Trace) MainThreadTasks(minDuration time.Duration) []Task {
	main, ok := t.mainThread()
	if !ok {
		return nil
	}

	var events []TraceEvent
	for _, e := range t.Events {
		if e.Ph == "X" && e.Pid == main.pid && e.Tid == main.tid {
			events = append(events, e)
		}
	}
	// Parents before children when they start together.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Ts != events[j].Ts {
			return events[i].Ts < events[j].Ts
		}
		return events[i].Dur > events[j].Dur
	})

	var tasks []Task
	var topLevelEnd time.Duration
	for i, e := range events {
		if i > 0 && e.Start() < topLevelEnd {
			continue
		}
		topLevelEnd = e.End()
		if micros(e.Dur) < minDuration {
			continue
		}
		tasks = append(tasks, Task{
			Name:     e.Name,
			ThreadID: e.Tid,
			Start:    e.Start(),
			Duration: micros(e.Dur),
		})
	}
	return tasks
}
