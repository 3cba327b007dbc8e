package chainadapter

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

var ErrUnsupportedChain = errors.New("unsupported chain")

type Registry struct {
	adapters map[model.Chain]IAdapter
}

func NewRegistry(adapters ...IAdapter) *Registry {
	r := &Registry{adapters: make(map[model.Chain]IAdapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		r.adapters[a.Chain()] = a
	}
	return r
}

func (r *Registry) Get(chain model.Chain) (IAdapter, error) {
	a, ok := r.adapters[chain]
	if !ok {
		return nil, errors.Wrap(ErrUnsupportedChain, fmt.Sprintf("chain %q", chain))
	}
	return a, nil
}

// Chains lists registered chains in model.SupportedChains order.
func (r *Registry) Chains() []model.Chain {
	chains := make([]model.Chain, 0, len(r.adapters))
	for _, c := range model.SupportedChains {
		if _, ok := r.adapters[c]; ok {
			chains = append(chains, c)
		}
	}
	return chains
}

// Wrap replaces every adapter with wrap(adapter), used to put breakers in front.
func (r *Registry) Wrap(wrap func(IAdapter) IAdapter) {
	for c, a := range r.adapters {
		r.adapters[c] = wrap(a)
	}
}
