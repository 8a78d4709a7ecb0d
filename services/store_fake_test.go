package services

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cave-store/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// fakeStore is an in-memory Store. It mirrors the two store behaviors the
// services lean on: sql.ErrNoRows for zero-row lookups, and the partial
// unique index on cave_sessions(user) for open rows, reported with the
// same "UNIQUE constraint failed" text the sqlite driver produces. All
// methods are mutex-guarded so concurrent callers interleave like they
// would against a real store.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string]*core.Collection
	records     map[string][]*core.Record
	seq         int

	// saveHook runs before Save takes the lock; used to inject a
	// concurrent winner between a service's check and its insert.
	saveHook func(rec *core.Record) error
}

func newFakeStore() *fakeStore {
	f := &fakeStore{
		collections: map[string]*core.Collection{},
		records:     map[string][]*core.Record{},
	}

	events := core.NewBaseCollection(models.CollectionEvents)
	events.Fields.Add(
		&core.TextField{Name: "title"},
		&core.TextField{Name: "kind"},
		&core.DateField{Name: "start_time"},
		&core.DateField{Name: "end_time"},
		&core.BoolField{Name: "is_active"},
		&core.NumberField{Name: "max_concurrent", OnlyInt: true},
		&core.NumberField{Name: "user_time_limit", OnlyInt: true},
		&core.NumberField{Name: "purchase_cap"},
		&core.NumberField{Name: "max_participations_per_user", OnlyInt: true},
		&core.TextField{Name: "allowed_pay"},
	)

	tickets := core.NewBaseCollection(models.CollectionTickets)
	tickets.Fields.Add(
		&core.TextField{Name: "event"},
		&core.TextField{Name: "code"},
		&core.NumberField{Name: "max_use", OnlyInt: true},
		&core.NumberField{Name: "per_user_limit", OnlyInt: true},
		&core.BoolField{Name: "is_personal"},
		&core.TextField{Name: "owner_user"},
		&core.DateField{Name: "expiry"},
		&core.BoolField{Name: "is_active"},
	)

	sessions := core.NewBaseCollection(models.CollectionSessions)
	sessions.Fields.Add(
		&core.TextField{Name: "user"},
		&core.TextField{Name: "event"},
		&core.DateField{Name: "entered_at"},
		&core.DateField{Name: "expires_at"},
		&core.DateField{Name: "left_at"},
		&core.NumberField{Name: "total_spent"},
	)

	orders := core.NewBaseCollection(models.CollectionOrders)
	orders.Fields.Add(
		&core.TextField{Name: "session"},
		&core.TextField{Name: "event"},
		&core.TextField{Name: "user"},
		&core.NumberField{Name: "amount"},
		&core.TextField{Name: "paid_with"},
		&core.DateField{Name: "created"},
	)

	for _, c := range []*core.Collection{events, tickets, sessions, orders} {
		f.collections[c.Name] = c
	}

	return f
}

func collectionName(identifier any) string {
	switch v := identifier.(type) {
	case string:
		return v
	case *core.Collection:
		return v.Name
	default:
		return fmt.Sprint(identifier)
	}
}

func (f *fakeStore) FindCollectionByNameOrId(nameOrId string) (*core.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.collections[nameOrId]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) FindRecordById(identifier any, recordId string, _ ...func(q *dbx.SelectQuery) error) (*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rec := range f.records[collectionName(identifier)] {
		if rec.Id == recordId {
			return rec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) FindAllRecords(identifier any, exprs ...dbx.Expression) ([]*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*core.Record
	for _, rec := range f.records[collectionName(identifier)] {
		ok, err := matches(rec, exprs)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) CountRecords(identifier any, exprs ...dbx.Expression) (int64, error) {
	records, err := f.FindAllRecords(identifier, exprs...)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

func (f *fakeStore) Save(m core.Model) error {
	rec, ok := m.(*core.Record)
	if !ok {
		return fmt.Errorf("fake store only saves records, got %T", m)
	}

	if f.saveHook != nil {
		if err := f.saveHook(rec); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(rec)
}

func (f *fakeStore) saveLocked(rec *core.Record) error {
	name := rec.Collection().Name

	// Partial unique index: at most one cave_sessions row per user with
	// left_at still empty.
	if name == models.CollectionSessions && rec.GetDateTime("left_at").IsZero() {
		for _, other := range f.records[name] {
			if other.Id != rec.Id &&
				other.GetString("user") == rec.GetString("user") &&
				other.GetDateTime("left_at").IsZero() {
				return errors.New("UNIQUE constraint failed: cave_sessions.user")
			}
		}
	}

	if rec.Id == "" {
		f.seq++
		rec.Id = fmt.Sprintf("rec_%d", f.seq)
	}

	for _, existing := range f.records[name] {
		if existing.Id == rec.Id {
			return nil // records are shared pointers, already up to date
		}
	}

	if name == models.CollectionOrders && rec.GetDateTime("created").IsZero() {
		rec.Set("created", time.Now().UTC())
	}

	f.records[name] = append(f.records[name], rec)
	return nil
}

func (f *fakeStore) Delete(m core.Model) error {
	rec, ok := m.(*core.Record)
	if !ok {
		return fmt.Errorf("fake store only deletes records, got %T", m)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	name := rec.Collection().Name
	for i, existing := range f.records[name] {
		if existing.Id == rec.Id {
			f.records[name] = append(f.records[name][:i], f.records[name][i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

// matches evaluates the equality expressions the services use.
func matches(rec *core.Record, exprs []dbx.Expression) (bool, error) {
	for _, expr := range exprs {
		hash, ok := expr.(dbx.HashExp)
		if !ok {
			return false, fmt.Errorf("fake store cannot evaluate %T", expr)
		}
		for key, want := range hash {
			if fmt.Sprint(rec.Get(key)) != fmt.Sprint(want) {
				return false, nil
			}
		}
	}
	return true, nil
}

// insert bypasses Save so tests can seed records, ids included.
func (f *fakeStore) insert(t *testing.T, collection string, fields map[string]any) *core.Record {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	col, ok := f.collections[collection]
	if !ok {
		t.Fatalf("unknown collection %q", collection)
	}

	rec := core.NewRecord(col)
	for key, value := range fields {
		if key == "id" {
			rec.Id = value.(string)
			continue
		}
		rec.Set(key, value)
	}
	if rec.Id == "" {
		f.seq++
		rec.Id = fmt.Sprintf("rec_%d", f.seq)
	}

	f.records[collection] = append(f.records[collection], rec)
	return rec
}

// record returns the stored record or fails the test.
func (f *fakeStore) record(t *testing.T, collection, id string) *core.Record {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rec := range f.records[collection] {
		if rec.Id == id {
			return rec
		}
	}
	t.Fatalf("record %s/%s not found", collection, id)
	return nil
}

func (f *fakeStore) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[collection])
}

// seedEvent inserts a default scheduled event and returns its id.
func seedEvent(t *testing.T, f *fakeStore, overrides map[string]any) string {
	t.Helper()

	now := time.Now().UTC()
	fields := map[string]any{
		"title":                       "Night Cave",
		"kind":                        models.EventKindScheduled,
		"start_time":                  now.Add(-time.Hour),
		"end_time":                    now.Add(time.Hour),
		"is_active":                   true,
		"max_concurrent":              10,
		"user_time_limit":             30,
		"purchase_cap":                500.0,
		"max_participations_per_user": 2,
		"allowed_pay":                 models.PayBoth,
	}
	for key, value := range overrides {
		fields[key] = value
	}

	return f.insert(t, models.CollectionEvents, fields).Id
}
