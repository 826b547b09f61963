package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/tarot-booking/internal/redis"
)

type ProposalState string

const (
	ProposalProposed  ProposalState = "proposed"
	ProposalAccepted  ProposalState = "accepted"
	ProposalConflict  ProposalState = "conflict"
	ProposalDiscarded ProposalState = "discarded"
)

var proposalTransitions = map[ProposalState][]ProposalState{
	ProposalProposed: {ProposalAccepted, ProposalConflict},
	ProposalConflict: {ProposalAccepted, ProposalDiscarded},
}

// Proposal tracks one admin request to add a window. A Conflict proposal
// carries the overlapping windows and the free segments the admin may confirm.
type Proposal struct {
	ID        uuid.UUID     `json:"id"`
	Date      time.Time     `json:"date"`
	Start     int           `json:"start"`
	End       int           `json:"end"`
	Type      WindowType    `json:"type"`
	State     ProposalState `json:"state"`
	Overlaps  []Window      `json:"overlaps,omitempty"`
	Segments  []Segment     `json:"segments,omitempty"`
	Windows   []Window      `json:"windows,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// OverlapLabels renders the conflicting windows as "HH:MM-HH:MM".
func (p Proposal) OverlapLabels() []string {
	labels := make([]string, 0, len(p.Overlaps))
	for _, w := range p.Overlaps {
		labels = append(labels, w.Range())
	}
	return labels
}

func (p Proposal) Terminal() bool {
	return p.State == ProposalAccepted || p.State == ProposalDiscarded
}

func (p *Proposal) transition(to ProposalState) error {
	for _, allowed := range proposalTransitions[p.State] {
		if allowed == to {
			p.State = to
			p.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, to)
}

// ProposalStore keeps proposals between the conflict response and the admin's decision.
type ProposalStore interface {
	Save(ctx context.Context, p Proposal) error
	Get(ctx context.Context, id uuid.UUID) (*Proposal, error)
}

type MemoryProposalStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	proposals map[uuid.UUID]storedProposal
}

type storedProposal struct {
	proposal  Proposal
	expiresAt time.Time
}

func NewMemoryProposalStore(ttl time.Duration) *MemoryProposalStore {
	return &MemoryProposalStore{
		ttl:       ttl,
		proposals: make(map[uuid.UUID]storedProposal),
	}
}

func (s *MemoryProposalStore) Save(ctx context.Context, p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = time.Now().Add(s.ttl)
	}
	s.proposals[p.ID] = storedProposal{proposal: p, expiresAt: expiresAt}
	return nil
}

func (s *MemoryProposalStore) Get(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if !stored.expiresAt.IsZero() && time.Now().After(stored.expiresAt) {
		delete(s.proposals, id)
		return nil, ErrProposalNotFound
	}
	p := stored.proposal
	return &p, nil
}

// KV is a byte store with expiry handled by the implementation, e.g. redisclient.TTLStore.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// KVProposalStore keeps proposals as JSON in a KV store so any API instance can confirm them.
type KVProposalStore struct {
	kv KV
}

func NewKVProposalStore(kv KV) *KVProposalStore {
	return &KVProposalStore{kv: kv}
}

func (s *KVProposalStore) Save(ctx context.Context, p Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	if err := s.kv.Put(ctx, p.ID.String(), data); err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	return nil
}

func (s *KVProposalStore) Get(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	data, err := s.kv.Get(ctx, id.String())
	if err != nil {
		if errors.Is(err, redisclient.ErrKeyNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("load proposal: %w", err)
	}

	var p Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal proposal: %w", err)
	}
	return &p, nil
}
