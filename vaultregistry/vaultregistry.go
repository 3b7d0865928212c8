// Package vaultregistry implements the read-mostly catalogue of deployed
// vault contracts (C2): a lookup table keyed by (token, chain, feePercent,
// optional groupId), refreshed from persistence at startup and on
// operator mutation, cached behind an RWMutex the way routing's
// unifiedPolicies caches per-query edge sets, generalized here to a
// whole-table cache.
package vaultregistry

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/escrowerr"
)

// Status is the lifecycle state of a registered contract row.
type Status string

const (
	StatusDeployed   Status = "deployed"
	StatusRetired    Status = "retired"
	StatusMaintained Status = "maintenance"
)

// Contract is a single deployed vault contract row.
type Contract struct {
	Name    string // always "EscrowVault"
	Token   chain.Token
	Chain   chain.Chain
	Address string

	// FeePercent is the decimal fee, e.g. 0.25 meaning 0.25%.
	FeePercent decimal.Decimal

	// FeeBasisPoints is the same fee expressed the way the on-chain
	// vault stores it. Invariant: FeeBasisPoints == FeePercent * 100.
	FeeBasisPoints uint32

	Status Status

	// GroupID pins this contract to a single room/group when non-empty.
	GroupID string
}

// key identifies a contract row for lookup purposes.
type key struct {
	Token      chain.Token
	Chain      chain.Chain
	FeePercent string // decimal.Decimal.String(), for comparable map keys
	GroupID    string
}

func contractKey(token chain.Token, c chain.Chain, fee decimal.Decimal, groupID string) key {
	return key{Token: token, Chain: c, FeePercent: fee.String(), GroupID: groupID}
}

// Registry is the in-memory contract catalogue. All reads take the RLock;
// Reload and Register take the full write lock.
type Registry struct {
	mu sync.RWMutex

	// pinned holds contracts with a non-empty GroupID, the highest
	// priority resolution tier.
	pinned map[key]*Contract

	// legacy holds contracts registered against a room's deprecated
	// free-form contracts map, the middle resolution tier.
	legacy map[string]map[chain.Token]*Contract // groupId -> token -> contract

	// tiered holds contracts with no GroupID, addressable by
	// (token, chain, feePercent) alone.
	tiered map[key]*Contract
}

// New constructs an empty Registry. Callers load rows with Reload.
func New() *Registry {
	return &Registry{
		pinned: make(map[key]*Contract),
		legacy: make(map[string]map[chain.Token]*Contract),
		tiered: make(map[key]*Contract),
	}
}

// Reload replaces the entire cached table, the moral equivalent of a
// whole-registry SELECT on startup or after an operator mutation event.
// Each row's basis-point/decimal agreement is asserted before it is
// admitted; a disagreeing row fails the whole reload rather than being
// silently dropped, since a quiet fee mismatch would misprice every trade
// routed through it.
func (r *Registry) Reload(rows []*Contract) error {
	pinned := make(map[key]*Contract)
	legacy := make(map[string]map[chain.Token]*Contract)
	tiered := make(map[key]*Contract)

	for _, row := range rows {
		if err := assertFeeAgreement(row); err != nil {
			return err
		}
		if row.Status != StatusDeployed {
			continue
		}
		if row.GroupID != "" {
			pinned[contractKey(row.Token, row.Chain, row.FeePercent, row.GroupID)] = row
			if legacy[row.GroupID] == nil {
				legacy[row.GroupID] = make(map[chain.Token]*Contract)
			}
			legacy[row.GroupID][row.Token] = row
			continue
		}
		tiered[contractKey(row.Token, row.Chain, row.FeePercent, "")] = row
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned = pinned
	r.legacy = legacy
	r.tiered = tiered
	log.Infof("vault registry reloaded: %d pinned, %d tiered", len(pinned), len(tiered))
	return nil
}

// Register admits a single new row without disturbing the rest of the
// cache, for operator tooling that provisions one contract at a time.
// As in Reload, a row whose Status is not deployed is checked and then
// left out of the cache.
func (r *Registry) Register(row *Contract) error {
	if err := assertFeeAgreement(row); err != nil {
		return err
	}
	if row.Status != StatusDeployed {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if row.GroupID != "" {
		r.pinned[contractKey(row.Token, row.Chain, row.FeePercent, row.GroupID)] = row
		if r.legacy[row.GroupID] == nil {
			r.legacy[row.GroupID] = make(map[chain.Token]*Contract)
		}
		r.legacy[row.GroupID][row.Token] = row
		return nil
	}
	r.tiered[contractKey(row.Token, row.Chain, row.FeePercent, "")] = row
	return nil
}

func assertFeeAgreement(row *Contract) error {
	expected := row.FeePercent.Mul(decimal.NewFromInt(100))
	got := decimal.NewFromInt32(int32(row.FeeBasisPoints))
	if !expected.Equal(got) {
		return escrowerr.Internalf(nil,
			"contract %s: feePercent %s disagrees with feeBasisPoints %d",
			row.Address, row.FeePercent, row.FeeBasisPoints)
	}
	return nil
}

// All returns every contract row currently cached, pinned and tiered
// alike, for admin introspection (escrowrpc's GetVaultRegistry).
func (r *Registry) All() []*Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Contract, 0, len(r.pinned)+len(r.tiered))
	for _, c := range r.pinned {
		out = append(out, c)
	}
	for _, c := range r.tiered {
		out = append(out, c)
	}
	return out
}

// Resolve implements the C2 resolution order for a given trade: a room
// pinned to this exact (token, chain, feePercent) wins first, then any
// contract in the room's legacy free-form map for this token, then any
// deployed contract matching (token, chain, feePercent) with no pinning.
// Resolution order is load-bearing: reordering it silently changes which
// vault a trade settles against.
func (r *Registry) Resolve(token chain.Token, normalizedChain chain.Chain, feePercent decimal.Decimal, groupID string) (*Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if groupID != "" {
		if c, ok := r.pinned[contractKey(token, normalizedChain, feePercent, groupID)]; ok {
			return c, nil
		}
		if byToken, ok := r.legacy[groupID]; ok {
			if c, ok := byToken[token]; ok && c.Chain == normalizedChain {
				return c, nil
			}
		}
	}

	if c, ok := r.tiered[contractKey(token, normalizedChain, feePercent, "")]; ok {
		return c, nil
	}

	return nil, escrowerr.NotFoundf("NO_VAULT_FOR_TIER: no deployed contract for %s on %s at %s%% fee", token, normalizedChain, feePercent)
}
