package processor

import (
	"fmt"
	"slices"

	imapping "github.com/goran-ethernal/ChainProcessor/internal/mapping"
	"github.com/goran-ethernal/ChainProcessor/internal/queue"
	"github.com/goran-ethernal/ChainProcessor/internal/metrics"
	istate "github.com/goran-ethernal/ChainProcessor/internal/state"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
	"github.com/puzpuzpuz/xsync/v4"
)

// Components are the parts wired together for one chain.
type Components struct {
	Chain     string
	Source    source.Source
	Keeper    *istate.Keeper
	Queue     *queue.BlockQueue
	Lookup    *imapping.Lookup
	Executor  *imapping.Executor
	Processor *Processor
}

// ChainStatus is a point in time view of one chain.
type ChainStatus struct {
	Chain   string               `json:"chain"`
	Status  string               `json:"status"`
	Error   string               `json:"error,omitempty"`
	Range   state.Range          `json:"range"`
	State   state.ProcessorState `json:"state"`
	Indexer source.IndexerStatus `json:"indexer"`
}

// Registry indexes chain components by chain name.
type Registry struct {
	chains *xsync.Map[string, *Components]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{chains: xsync.NewMap[string, *Components]()}
}

// Add registers the components of a chain. A chain can be registered once.
func (r *Registry) Add(c *Components) error {
	if _, loaded := r.chains.LoadOrStore(c.Chain, c); loaded {
		return fmt.Errorf("chain %s already registered", c.Chain)
	}
	return nil
}

// Get returns the components of a chain.
func (r *Registry) Get(chain string) (*Components, bool) {
	return r.chains.Load(chain)
}

// Chains returns the registered chain names, sorted.
func (r *Registry) Chains() []string {
	names := make([]string, 0, r.chains.Size())
	r.chains.Range(func(name string, _ *Components) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// All returns the components of every chain, ordered by chain name.
func (r *Registry) All() []*Components {
	names := r.Chains()
	out := make([]*Components, 0, len(names))
	for _, name := range names {
		if c, ok := r.chains.Load(name); ok {
			out = append(out, c)
		}
	}
	return out
}

// Statuses reports every chain, ordered by chain name.
func (r *Registry) Statuses() []ChainStatus {
	all := r.All()
	out := make([]ChainStatus, 0, len(all))
	for _, c := range all {
		s := ChainStatus{
			Chain:   c.Chain,
			Status:  c.Processor.Status().String(),
			Range:   c.Keeper.Range(),
			State:   c.Keeper.GetState(),
			Indexer: c.Keeper.GetIndexerStatus(),
		}
		if err := c.Processor.Err(); err != nil {
			s.Error = err.Error()
		}
		out = append(out, s)
	}
	return out
}

// ChainStates reports the processor status and scan position of every chain.
func (r *Registry) ChainStates() []metrics.ChainState {
	all := r.All()
	out := make([]metrics.ChainState, 0, len(all))
	for _, c := range all {
		status := c.Processor.Status()
		out = append(out, metrics.ChainState{
			Chain:            c.Chain,
			Status:           status.String(),
			Healthy:          status != Faulted,
			LastScannedBlock: c.Keeper.GetState().LastScannedBlock,
			IndexerHead:      c.Keeper.GetIndexerStatus().Head,
		})
	}
	return out
}
