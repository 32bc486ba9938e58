// Package memstore provides in-memory implementations of the feature
// store interfaces over one shared state, so flows that span features,
// signup followed by inventory calls, see the same data. It backs handler
// tests and local runs without Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stocktally/backend/internal/activity"
	"github.com/stocktally/backend/internal/auth"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/internal/orgs"
	"github.com/stocktally/backend/internal/products"
)

type productEntry struct {
	p   models.Product
	seq int64
}

type state struct {
	mu         sync.RWMutex
	seq        int64
	users      map[uuid.UUID]models.User
	emails     map[string]uuid.UUID
	orgs       map[uuid.UUID]models.Organization
	products   map[uuid.UUID]productEntry
	activities []models.StockActivity
}

// Store bundles one in-memory implementation per feature store, all backed
// by the same state and mutex.
type Store struct {
	Auth     *AuthStore
	Orgs     *OrgStore
	Products *ProductStore
	Activity *ActivityStore
}

// New creates an empty store.
func New() *Store {
	st := &state{
		users:    make(map[uuid.UUID]models.User),
		emails:   make(map[string]uuid.UUID),
		orgs:     make(map[uuid.UUID]models.Organization),
		products: make(map[uuid.UUID]productEntry),
	}
	return &Store{
		Auth:     &AuthStore{st: st},
		Orgs:     &OrgStore{st: st},
		Products: &ProductStore{st: st},
		Activity: &ActivityStore{st: st},
	}
}

// AuthStore implements auth.Store.
type AuthStore struct {
	st *state
}

var _ auth.Store = (*AuthStore)(nil)

// CreateAccount creates an organization and its first user atomically.
func (s *AuthStore) CreateAccount(_ context.Context, email, passwordHash, organizationName string) (*models.User, *models.Organization, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.emails[email]; ok {
		return nil, nil, auth.ErrDuplicateEmail
	}

	now := time.Now().UTC()
	org := models.Organization{
		ID:                       uuid.New(),
		Name:                     organizationName,
		DefaultLowStockThreshold: models.DefaultLowStockThreshold,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	u := models.User{
		ID:             uuid.New(),
		Email:          email,
		PasswordHash:   passwordHash,
		OrganizationID: org.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.st.orgs[org.ID] = org
	s.st.users[u.ID] = u
	s.st.emails[email] = u.ID
	return &u, &org, nil
}

// GetUserByEmail returns the user with the exact stored email.
func (s *AuthStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	id, ok := s.st.emails[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	u := s.st.users[id]
	return &u, nil
}

// GetUserByID returns a user by id.
func (s *AuthStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	u, ok := s.st.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &u, nil
}

// OrgStore implements orgs.Store.
type OrgStore struct {
	st *state
}

var _ orgs.Store = (*OrgStore)(nil)

// GetByID returns an organization by id.
func (s *OrgStore) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	o, ok := s.st.orgs[id]
	if !ok {
		return nil, orgs.ErrNotFound
	}
	return &o, nil
}

// UpdateDefaultLowStockThreshold sets the org default threshold.
func (s *OrgStore) UpdateDefaultLowStockThreshold(_ context.Context, id uuid.UUID, threshold int) (*models.Organization, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	o, ok := s.st.orgs[id]
	if !ok {
		return nil, orgs.ErrNotFound
	}
	o.DefaultLowStockThreshold = threshold
	o.UpdatedAt = time.Now().UTC()
	s.st.orgs[id] = o
	return &o, nil
}

// ProductStore implements products.Store.
type ProductStore struct {
	st *state
}

var _ products.Store = (*ProductStore)(nil)

// Create inserts a product, enforcing SKU uniqueness inside the org.
func (s *ProductStore) Create(_ context.Context, p *models.Product) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, e := range s.st.products {
		if e.p.OrganizationID == p.OrganizationID && e.p.SKU == p.SKU {
			return products.ErrDuplicateSKU
		}
	}
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.st.seq++
	s.st.products[p.ID] = productEntry{p: *p, seq: s.st.seq}
	return nil
}

// GetByID returns a product by id inside the organization.
func (s *ProductStore) GetByID(_ context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	e, ok := s.st.products[id]
	if !ok || e.p.OrganizationID != orgID {
		return nil, products.ErrNotFound
	}
	p := e.p
	return &p, nil
}

// List returns the org's products, newest first.
func (s *ProductStore) List(_ context.Context, orgID uuid.UUID) ([]models.Product, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var entries []productEntry
	for _, e := range s.st.products {
		if e.p.OrganizationID == orgID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	list := make([]models.Product, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.p)
	}
	return list, nil
}

// Update applies the non-nil fields of upd.
func (s *ProductStore) Update(_ context.Context, orgID, id uuid.UUID, upd products.Update) (*models.Product, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	e, ok := s.st.products[id]
	if !ok || e.p.OrganizationID != orgID {
		return nil, products.ErrNotFound
	}
	if upd.SKU != nil && *upd.SKU != e.p.SKU {
		for _, other := range s.st.products {
			if other.p.ID != id && other.p.OrganizationID == orgID && other.p.SKU == *upd.SKU {
				return nil, products.ErrDuplicateSKU
			}
		}
		e.p.SKU = *upd.SKU
	}
	if upd.Name != nil {
		e.p.Name = *upd.Name
	}
	if upd.QuantityOnHand != nil {
		e.p.QuantityOnHand = *upd.QuantityOnHand
	}
	if upd.CostPrice != nil {
		e.p.CostPrice = upd.CostPrice
	}
	if upd.SellingPrice != nil {
		e.p.SellingPrice = upd.SellingPrice
	}
	if upd.LowStockThreshold != nil {
		e.p.LowStockThreshold = upd.LowStockThreshold
	}
	if upd.Description != nil {
		e.p.Description = *upd.Description
	}
	e.p.UpdatedAt = time.Now().UTC()
	s.st.products[id] = e
	p := e.p
	return &p, nil
}

// Delete removes a product inside the organization.
func (s *ProductStore) Delete(_ context.Context, orgID, id uuid.UUID) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	e, ok := s.st.products[id]
	if !ok || e.p.OrganizationID != orgID {
		return products.ErrNotFound
	}
	delete(s.st.products, id)
	return nil
}

// SetImageKey stores the product's image object key.
func (s *ProductStore) SetImageKey(_ context.Context, orgID, id uuid.UUID, key string) (*models.Product, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	e, ok := s.st.products[id]
	if !ok || e.p.OrganizationID != orgID {
		return nil, products.ErrNotFound
	}
	e.p.ImageKey = key
	e.p.UpdatedAt = time.Now().UTC()
	s.st.products[id] = e
	p := e.p
	return &p, nil
}

// Summary aggregates totals and the low-stock list for the organization.
func (s *ProductStore) Summary(_ context.Context, orgID uuid.UUID, defaultThreshold int) (*products.Summary, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var sum products.Summary
	var low []productEntry
	for _, e := range s.st.products {
		if e.p.OrganizationID != orgID {
			continue
		}
		sum.TotalProducts++
		sum.TotalQuantity += e.p.QuantityOnHand
		if e.p.QuantityOnHand <= e.p.EffectiveThreshold(defaultThreshold) {
			low = append(low, e)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].p.QuantityOnHand != low[j].p.QuantityOnHand {
			return low[i].p.QuantityOnHand < low[j].p.QuantityOnHand
		}
		return low[i].seq > low[j].seq
	})
	for _, e := range low {
		sum.LowStock = append(sum.LowStock, e.p)
	}
	return &sum, nil
}

// ActivityStore implements activity.Store.
type ActivityStore struct {
	st *state
}

var _ activity.Store = (*ActivityStore)(nil)

// Record appends an activity row.
func (s *ActivityStore) Record(_ context.Context, a *models.StockActivity) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	a.ID = uuid.New()
	a.RecordedAt = time.Now().UTC()
	s.st.activities = append(s.st.activities, *a)
	return nil
}

// ListByOrganization returns the org's most recent activity rows.
func (s *ActivityStore) ListByOrganization(_ context.Context, orgID uuid.UUID, limit int) ([]models.StockActivity, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var list []models.StockActivity
	for i := len(s.st.activities) - 1; i >= 0 && len(list) < limit; i-- {
		if s.st.activities[i].OrganizationID == orgID {
			list = append(list, s.st.activities[i])
		}
	}
	return list, nil
}
