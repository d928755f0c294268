package customers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/masterdata"
	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	rows     map[int64]Customer
	nextID   int64
	getCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Customer)}
}

func (m *memoryRepo) List(_ context.Context, filters masterdata.ListFilters) ([]Customer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Customer
	for _, c := range m.rows {
		if filters.IsActive != nil && c.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	start := filters.Offset()
	if start > total {
		start = total
	}
	end := start + filters.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	c, ok := m.rows[id]
	if !ok {
		return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func (m *memoryRepo) Create(_ context.Context, in CreateInput) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.Code == in.Code {
			return Customer{}, fmt.Errorf("%w: customer code %q", masterdata.ErrDuplicate, in.Code)
		}
	}
	m.nextID++
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Customer{
		ID: m.nextID, Code: in.Code, Name: in.Name, Email: in.Email, Phone: in.Phone, TaxID: in.TaxID,
		Country: in.Country, PaymentTermsDays: in.PaymentTermsDays, CreditLimitCents: in.CreditLimitCents,
		Notes: in.Notes, IsActive: true, RowVersion: 1, CreatedAt: now, UpdatedAt: now,
	}
	m.rows[c.ID] = c
	return c, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, in UpdateInput) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	if c.RowVersion != *in.RowVersion {
		return Customer{}, fmt.Errorf("%w: customer %d is at version %d", shared.ErrConcurrentUpdate, id, c.RowVersion)
	}
	if in.Code != nil {
		c.Code = *in.Code
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Email != nil {
		c.Email = *in.Email
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	if in.TaxID != nil {
		c.TaxID = *in.TaxID
	}
	if in.Country != nil {
		c.Country = *in.Country
	}
	if in.PaymentTermsDays != nil {
		c.PaymentTermsDays = *in.PaymentTermsDays
	}
	if in.CreditLimitCents != nil {
		c.CreditLimitCents = *in.CreditLimitCents
	}
	if in.Notes != nil {
		c.Notes = *in.Notes
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	c.RowVersion++
	c.UpdatedAt = c.UpdatedAt.Add(time.Minute)
	m.rows[id] = c
	return c, nil
}

func (m *memoryRepo) stored(id int64) Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newMemoryRepo()
	return NewService(repo, cache.NewJSON(client, "customer", time.Minute, nil, nil), nil, nil), repo, mr
}

func ptr[T any](v T) *T { return &v }

func createAcme(t *testing.T, svc *Service) Customer {
	t.Helper()
	c, err := svc.Create(context.Background(), CreateInput{
		Code:             " ACME ",
		Name:             "Acme GmbH",
		Email:            "billing@acme.example",
		Country:          "de",
		PaymentTermsDays: 30,
	})
	require.NoError(t, err)
	return c
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := createAcme(t, svc)
	assert.Equal(t, "ACME", c.Code)
	assert.Equal(t, "DE", c.Country)
	assert.Equal(t, int64(1), c.RowVersion)

	_, err := svc.Create(context.Background(), CreateInput{Code: "X", Name: "X", Country: "ZZ"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Create(context.Background(), CreateInput{Code: "Y", Name: "Y", Country: "AT", Email: "not-an-email"})
	assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))

	_, err = svc.Create(context.Background(), CreateInput{Code: "ACME", Name: "Again", Country: "AT"})
	require.ErrorIs(t, err, masterdata.ErrDuplicate)
}

func TestUpdateWithStaleVersionLeavesRecordUnchanged(t *testing.T) {
	svc, repo, _ := newTestService(t)
	c := createAcme(t, svc)

	first, err := svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(c.RowVersion), Name: ptr("Acme AG")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.RowVersion)

	// Second operator still holds version 1.
	_, err = svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(c.RowVersion), Name: ptr("Acme Ltd")})
	require.ErrorIs(t, err, shared.ErrConcurrentUpdate)
	assert.Equal(t, shared.CodeConcurrentUpdate, shared.CodeOf(err))

	stored := repo.stored(c.ID)
	assert.Equal(t, "Acme AG", stored.Name)
	assert.Equal(t, int64(2), stored.RowVersion)
}

func TestUpdateRequiresVersion(t *testing.T) {
	svc, repo, _ := newTestService(t)
	c := createAcme(t, svc)

	_, err := svc.Update(context.Background(), c.ID, UpdateInput{Name: ptr("Nope")})
	require.ErrorIs(t, err, shared.ErrMissingVersion)
	assert.Equal(t, int64(1), repo.stored(c.ID).RowVersion)
}

func TestUpdateUnknownCustomerIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), 404, UpdateInput{RowVersion: ptr(int64(1)), Name: ptr("Ghost")})
	assert.Equal(t, shared.CodeNotFound, shared.CodeOf(err))
}

func TestUpdateRejectsEmptyAndInvalidPatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := createAcme(t, svc)

	_, err := svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(c.RowVersion)})
	require.ErrorIs(t, err, masterdata.ErrEmptyPatch)

	_, err = svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(c.RowVersion), Name: ptr("  ")})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(c.RowVersion), PaymentTermsDays: ptr(-1)})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGetIsCachedAndUpdateRefreshes(t *testing.T) {
	svc, repo, mr := newTestService(t)
	c := createAcme(t, svc)

	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme GmbH", got.Name)
	_, err = svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)
	assert.True(t, mr.Exists(fmt.Sprintf("customer:%d", c.ID)))

	_, err = svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(got.RowVersion), Email: ptr("")})
	require.NoError(t, err)
	assert.True(t, mr.Exists(fmt.Sprintf("customer:%d", c.ID)))

	got, err = svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Email)
	assert.Equal(t, int64(2), got.RowVersion)
	assert.Equal(t, 1, repo.getCalls)
}

func TestConflictEvictsCachedCopy(t *testing.T) {
	svc, _, mr := newTestService(t)
	c := createAcme(t, svc)
	_, err := svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(c.RowVersion), Notes: ptr("vip")})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(fmt.Sprintf("customer:%d", c.ID)))

	_, err = svc.Update(context.Background(), c.ID, UpdateInput{RowVersion: ptr(c.RowVersion), Notes: ptr("stale")})
	require.ErrorIs(t, err, shared.ErrConcurrentUpdate)
	assert.False(t, mr.Exists(fmt.Sprintf("customer:%d", c.ID)))
}

func TestGetMissingIsNotCached(t *testing.T) {
	svc, _, mr := newTestService(t)
	_, err := svc.Get(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.False(t, mr.Exists("customer:99"))

	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGetSurvivesCacheOutage(t *testing.T) {
	svc, _, mr := newTestService(t)
	c := createAcme(t, svc)
	mr.Close()

	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Code, got.Code)
}

func TestListPages(t *testing.T) {
	svc, _, _ := newTestService(t)
	for i := 0; i < 5; i++ {
		_, err := svc.Create(context.Background(), CreateInput{Code: fmt.Sprintf("C%d", i), Name: "n", Country: "FR"})
		require.NoError(t, err)
	}
	page, total, err := svc.List(context.Background(), masterdata.ListFilters{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "C2", page[0].Code)
}
