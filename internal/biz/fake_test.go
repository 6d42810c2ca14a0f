package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore 内存版余额 + 账本，单把锁串行化所有变更
type memStore struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  []*CreditLedgerEntry
	grants   []*CreditGrant
	seq      int
	failNext error
}

func newMemStore() *memStore {
	return &memStore{balances: make(map[string]int64)}
}

func (s *memStore) GetBalance(_ context.Context, orgID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[orgID], nil
}

func (s *memStore) WithLockedBalance(_ context.Context, orgID, requestID string, fn MutateFunc) (*CreditLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked := &LockedBalance{OrganizationID: orgID, Balance: s.balances[orgID]}
	if requestID != "" {
		for _, e := range s.entries {
			if e.OrganizationID == orgID && e.RequestID == requestID {
				locked.Replay = e
				break
			}
		}
	}
	m, err := fn(locked)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return locked.Replay, nil
	}
	if s.failNext != nil {
		err, s.failNext = s.failNext, nil
		return nil, err
	}

	s.seq++
	m.Entry.ID = fmt.Sprintf("entry-%04d", s.seq)
	m.Entry.OrganizationID = orgID
	m.Entry.RequestID = requestID
	m.Entry.CreatedAt = time.Now()
	s.balances[orgID] = m.NewBalance
	s.entries = append(s.entries, m.Entry)
	if m.Grant != nil {
		m.Grant.ID = fmt.Sprintf("grant-%04d", s.seq)
		m.Grant.LedgerEntryID = m.Entry.ID
		s.grants = append(s.grants, m.Grant)
	}
	return m.Entry, nil
}

func (s *memStore) SnapshotOrganization(_ context.Context, orgID string) (*LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(orgID), nil
}

func (s *memStore) ListSnapshots(_ context.Context, afterOrgID string, limit int) ([]*LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.balances))
	for id := range s.balances {
		if id > afterOrgID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*LedgerSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.snapshotLocked(id))
	}
	return out, nil
}

func (s *memStore) snapshotLocked(orgID string) *LedgerSnapshot {
	snapshot := &LedgerSnapshot{OrganizationID: orgID, Balance: s.balances[orgID]}
	for _, e := range s.entries {
		if e.OrganizationID == orgID {
			snapshot.LedgerSum += e.CreditsDelta
		}
	}
	return snapshot
}

func (s *memStore) ListLedger(_ context.Context, orgID string, filter *LedgerFilter, offset, limit int) ([]*CreditLedgerEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*CreditLedgerEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.OrganizationID != orgID {
			continue
		}
		if filter.Platform != "" && e.Platform != filter.Platform {
			continue
		}
		if filter.ActionType != "" && e.ActionType != filter.ActionType {
			continue
		}
		matched = append(matched, e)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []*CreditLedgerEntry{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *memStore) entriesFor(orgID string) []*CreditLedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CreditLedgerEntry
	for _, e := range s.entries {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out
}

// memPricing 内存价格表
type memPricing struct {
	mu     sync.Mutex
	prices map[string]int64
}

func newMemPricing(prices map[[2]string]int64) *memPricing {
	p := &memPricing{prices: make(map[string]int64)}
	for k, v := range prices {
		p.prices[k[0]+"|"+k[1]] = v
	}
	return p
}

func (p *memPricing) GetPricing(_ context.Context, actionType, platform string) (*CreditPricing, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.prices[actionType+"|"+platform]
	if !ok {
		return nil, nil
	}
	return &CreditPricing{ActionType: actionType, Platform: platform, CreditsRequired: v}, nil
}

func (p *memPricing) UpsertPricing(_ context.Context, pricing *CreditPricing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[pricing.ActionType+"|"+pricing.Platform] = pricing.CreditsRequired
	return nil
}

func (p *memPricing) ListPricing(_ context.Context) ([]*CreditPricing, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*CreditPricing
	for k, v := range p.prices {
		action, platform, _ := strings.Cut(k, "|")
		out = append(out, &CreditPricing{ActionType: action, Platform: platform, CreditsRequired: v})
	}
	return out, nil
}

// recordingPublisher 记录发送的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t string) []*LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*LedgerEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
