package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process PurchaseOrderStore and CategoryMakesLookup. It backs
// tests and the CLI's offline mode.
type MemoryStore struct {
	mu         sync.RWMutex
	orders     map[string]PurchaseOrder
	sentBack   map[string]SentBackRecord
	categories map[string]map[string][]string
	// failWrites makes UpdateStatus fail for the listed PO ids.
	failWrites map[string]error
	seq        int
	created    map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:     make(map[string]PurchaseOrder),
		sentBack:   make(map[string]SentBackRecord),
		categories: make(map[string]map[string][]string),
		failWrites: make(map[string]error),
		created:    make(map[string]int),
	}
}

// Put inserts or replaces a purchase order without any checks.
func (m *MemoryStore) Put(po PurchaseOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(po)
}

func (m *MemoryStore) put(po PurchaseOrder) {
	if _, ok := m.created[po.ID]; !ok {
		m.seq++
		m.created[po.ID] = m.seq
	}
	m.orders[po.ID] = po.Clone()
}

// SetCategoryMakes registers the allowed makes of a procurement request's categories.
func (m *MemoryStore) SetCategoryMakes(procurementRequestID string, makes map[string][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[procurementRequestID] = makes
}

// FailStatusWrites makes every UpdateStatus for poID return err. A nil err clears it.
func (m *MemoryStore) FailStatusWrites(poID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failWrites, poID)
		return
	}
	m.failWrites[poID] = err
}

// SentBack returns the sent-back records forked from poID.
func (m *MemoryStore) SentBack(poID string) []SentBackRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SentBackRecord
	for _, r := range m.sentBack {
		if r.SourcePOID == poID {
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryStore) GetPO(_ context.Context, id string) (*PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	po, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("purchase order %s: %w", id, ErrPONotFound)
	}
	c := po.Clone()
	return &c, nil
}

func (m *MemoryStore) ListPOs(_ context.Context, f POFilter) ([]PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PurchaseOrder
	for _, po := range m.orders {
		if f.ProjectID != "" && po.ProjectID != f.ProjectID {
			continue
		}
		if f.VendorID != "" && po.VendorID != f.VendorID {
			continue
		}
		if f.Status != "" && po.Status != f.Status {
			continue
		}
		if f.MergedInto != "" && (po.MergedInto == nil || *po.MergedInto != f.MergedInto) {
			continue
		}
		out = append(out, po.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return m.created[out[i].ID] < m.created[out[j].ID]
	})
	return out, nil
}

func (m *MemoryStore) CreatePO(_ context.Context, po PurchaseOrder) error {
	if err := po.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[po.ID]; ok {
		return nil
	}
	m.put(po)
	return nil
}

func (m *MemoryStore) SavePO(_ context.Context, po PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[po.ID]; !ok {
		return fmt.Errorf("purchase order %s: %w", po.ID, ErrPONotFound)
	}
	m.put(po)
	return nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, u StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failWrites[u.POID]; ok {
		return fmt.Errorf("update purchase order %s to %s: %w", u.POID, u.To, err)
	}
	po, ok := m.orders[u.POID]
	if !ok {
		return fmt.Errorf("purchase order %s: %w", u.POID, ErrPONotFound)
	}
	if err := CheckStatusUpdate(po, u); err != nil {
		return err
	}
	m.orders[u.POID] = ApplyStatusUpdate(po, u)
	return nil
}

func (m *MemoryStore) DeletePO(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	return nil
}

func (m *MemoryStore) CreateSentBack(_ context.Context, rec SentBackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentBack[rec.ID] = rec
	return nil
}

func (m *MemoryStore) CategoryMakes(_ context.Context, procurementRequestID string) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string)
	for k, v := range m.categories[procurementRequestID] {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}
