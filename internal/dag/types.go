package dag

import (
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which variant of the Node union a value is.
type Kind int

const (
	// KindNetwork is a resource fetch.
	KindNetwork Kind = iota
	// KindCompute is a task on the main thread.
	KindCompute
)

// String returns the lowercase name used in logs and JSON.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Base carries the attributes every node variant shares.
type Base struct {
	// ID is unique within a graph.
	ID string
	// Duration is the node's estimated run time.
	Duration time.Duration
	// Order is the node's position in the original recording. The
	// simulator uses it to break ties deterministically.
	Order int
}

// Info returns the shared attributes. It is promoted onto both variants.
func (b Base) Info() Base { return b }

// Node is implemented only by NetworkNode and ComputeNode. Consumers switch
// over the concrete type exhaustively.
type Node interface {
	Info() Base
	Kind() Kind
	// WithDuration returns a copy of the node with a new duration.
	WithDuration(d time.Duration) Node

	sealed()
}

// NetworkNode is a single resource fetch.
type NetworkNode struct {
	Base
	URL          string
	ResourceType string
	// AffinityKey groups fetches that compete for the same connections,
	// normally the URL origin.
	AffinityKey  string
	TransferSize int64
	ResourceSize int64
}

func (n NetworkNode) Kind() Kind { return KindNetwork }

func (n NetworkNode) WithDuration(d time.Duration) Node {
	n.Duration = d
	return n
}

func (NetworkNode) sealed() {}

// ComputeNode is a main-thread task taken from the performance trace.
type ComputeNode struct {
	Base
	ThreadID int
	// Timestamp is the task's start offset inside the recording.
	Timestamp time.Duration
}

func (n ComputeNode) Kind() Kind { return KindCompute }

func (n ComputeNode) WithDuration(d time.Duration) Node {
	n.Duration = d
	return n
}

func (ComputeNode) sealed() {}

// idSet is an insertion-ordered set of node ids.
type idSet = orderedmap.OrderedMap[string, struct{}]

// vertex pairs a node payload with its edges. It is un-exported so edges
// can only be changed through the Graph API.
type vertex struct {
	node Node
	// deps holds the ids this node waits for (predecessors).
	deps *idSet
	// dependents holds the ids waiting for this node (successors).
	dependents *idSet
}

func newVertex(n Node) *vertex {
	return &vertex{
		node:       n,
		deps:       orderedmap.New[string, struct{}](),
		dependents: orderedmap.New[string, struct{}](),
	}
}

// Graph is a page-load dependency graph. All methods are safe for
// concurrent use.
type Graph struct {
	// mutex protects every field below.
	mutex sync.RWMutex
	// vertices stores all nodes, keyed by id.
	vertices map[string]*vertex
	// order lists ids in insertion order.
	order []string
	// rootID is the first node added.
	rootID string
	// frozen is set once Freeze succeeds; the graph is read-only afterwards.
	frozen bool
}
