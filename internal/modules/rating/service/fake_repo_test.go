package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"anoa.com/storerating/internal/entity"
	"anoa.com/storerating/internal/modules/rating/dto"
	"anoa.com/storerating/internal/modules/rating/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memDB is an in-memory stand-in for the three tables the aggregator touches. Transactions
// hold the mutex for their whole run and restore a snapshot on error, which is enough to
// model the store row lock and rollback.
type memDB struct {
	mu      sync.Mutex
	users   map[uuid.UUID]entity.User
	stores  map[uuid.UUID]entity.Store
	ratings map[uuid.UUID]entity.Rating
	clock   time.Time

	// hideLookups makes FindByUserAndStore miss this many times; -1 misses forever.
	hideLookups   int
	aggregateErr  error
	deleteUserErr error
}

func newMemDB() *memDB {
	return &memDB{
		users:   map[uuid.UUID]entity.User{},
		stores:  map[uuid.UUID]entity.Store{},
		ratings: map[uuid.UUID]entity.Rating{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (d *memDB) addUser(name string, role entity.Role) entity.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := entity.User{ID: uuid.New(), Name: name, Email: name + "@example.com", Address: "Somewhere", Role: role}
	d.users[u.ID] = u
	return u
}

func (d *memDB) addStore(name string, owner uuid.UUID) entity.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := entity.Store{ID: uuid.New(), Name: name, Email: name + "@store.com", Address: "Main street", OwnerID: owner}
	d.stores[s.ID] = s
	return s
}

func (d *memDB) store(id uuid.UUID) entity.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stores[id]
}

func (d *memDB) setAggregate(id uuid.UUID, avg float64, total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stores[id]
	s.AverageRating, s.TotalRatings = avg, total
	d.stores[id] = s
}

func (d *memDB) hasUser(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[id]
	return ok
}

func (d *memDB) hasStore(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.stores[id]
	return ok
}

func (d *memDB) ratingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ratings)
}

type snapshot struct {
	users   map[uuid.UUID]entity.User
	stores  map[uuid.UUID]entity.Store
	ratings map[uuid.UUID]entity.Rating
}

func (d *memDB) snapshot() snapshot {
	s := snapshot{
		users:   make(map[uuid.UUID]entity.User, len(d.users)),
		stores:  make(map[uuid.UUID]entity.Store, len(d.stores)),
		ratings: make(map[uuid.UUID]entity.Rating, len(d.ratings)),
	}
	for k, v := range d.users {
		s.users[k] = v
	}
	for k, v := range d.stores {
		s.stores[k] = v
	}
	for k, v := range d.ratings {
		s.ratings[k] = v
	}
	return s
}

func (d *memDB) restore(s snapshot) {
	d.users, d.stores, d.ratings = s.users, s.stores, s.ratings
}

type memRepo struct {
	db *memDB
	tx bool
}

var _ repository.RatingRepository = (*memRepo)(nil)

func (r *memRepo) guard() func() {
	if r.tx {
		return func() {}
	}
	r.db.mu.Lock()
	return r.db.mu.Unlock
}

func (r *memRepo) Transaction(ctx context.Context, fn func(repo repository.RatingRepository) error) error {
	if r.tx {
		return fn(r)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	snap := r.db.snapshot()
	if err := fn(&memRepo{db: r.db, tx: true}); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

func (r *memRepo) LockStore(ctx context.Context, storeID uuid.UUID) (*entity.Store, error) {
	return r.FindStore(ctx, storeID)
}

func (r *memRepo) FindStore(_ context.Context, storeID uuid.UUID) (*entity.Store, error) {
	defer r.guard()()
	s, ok := r.db.stores[storeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Rating, error) {
	defer r.guard()()
	rt, ok := r.db.ratings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withRelations(rt), nil
}

func (r *memRepo) withRelations(rt entity.Rating) *entity.Rating {
	if u, ok := r.db.users[rt.UserID]; ok {
		rt.User = &u
	}
	if s, ok := r.db.stores[rt.StoreID]; ok {
		rt.Store = &s
	}
	return &rt
}

func (r *memRepo) FindByIDAndUser(_ context.Context, id, userID uuid.UUID) (*entity.Rating, error) {
	defer r.guard()()
	rt, ok := r.db.ratings[id]
	if !ok || rt.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &rt, nil
}

func (r *memRepo) FindByUserAndStore(_ context.Context, userID, storeID uuid.UUID) (*entity.Rating, error) {
	defer r.guard()()
	if r.db.hideLookups != 0 {
		if r.db.hideLookups > 0 {
			r.db.hideLookups--
		}
		return nil, gorm.ErrRecordNotFound
	}
	for _, rt := range r.db.ratings {
		if rt.UserID == userID && rt.StoreID == storeID {
			return &rt, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) Create(_ context.Context, rating *entity.Rating) error {
	defer r.guard()()
	if _, ok := r.db.users[rating.UserID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	if _, ok := r.db.stores[rating.StoreID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	for _, rt := range r.db.ratings {
		if rt.UserID == rating.UserID && rt.StoreID == rating.StoreID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.db.clock = r.db.clock.Add(time.Second)
	rating.ID = uuid.New()
	rating.CreatedAt = r.db.clock
	rating.UpdatedAt = r.db.clock
	stored := *rating
	stored.User, stored.Store = nil, nil
	r.db.ratings[rating.ID] = stored
	return nil
}

func (r *memRepo) Update(_ context.Context, rating *entity.Rating) error {
	defer r.guard()()
	rt, ok := r.db.ratings[rating.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.db.clock = r.db.clock.Add(time.Second)
	rt.Rating = rating.Rating
	rt.Comment = rating.Comment
	rt.UpdatedAt = r.db.clock
	r.db.ratings[rating.ID] = rt
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.guard()()
	if _, ok := r.db.ratings[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.db.ratings, id)
	return nil
}

func (r *memRepo) DeleteByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	defer r.guard()()
	var n int64
	for id, rt := range r.db.ratings {
		if rt.UserID == userID {
			delete(r.db.ratings, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) Count(context.Context) (int64, error) {
	defer r.guard()()
	return int64(len(r.db.ratings)), nil
}

func (r *memRepo) list(match func(entity.Rating) bool, offset, limit int) ([]*entity.Rating, int64) {
	var all []entity.Rating
	for _, rt := range r.db.ratings {
		if match(rt) {
			all = append(all, rt)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))

	out := make([]*entity.Rating, 0, end-offset)
	for _, rt := range all[offset:end] {
		out = append(out, r.withRelations(rt))
	}
	return out, total
}

func (r *memRepo) ListByStore(_ context.Context, storeID uuid.UUID, offset, limit int) ([]*entity.Rating, int64, error) {
	defer r.guard()()
	out, total := r.list(func(rt entity.Rating) bool { return rt.StoreID == storeID }, offset, limit)
	return out, total, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID uuid.UUID, offset, limit int) ([]*entity.Rating, int64, error) {
	defer r.guard()()
	out, total := r.list(func(rt entity.Rating) bool { return rt.UserID == userID }, offset, limit)
	return out, total, nil
}

func (r *memRepo) AggregateForStore(_ context.Context, storeID uuid.UUID) (entity.Aggregate, error) {
	defer r.guard()()
	if r.db.aggregateErr != nil {
		return entity.Aggregate{}, r.db.aggregateErr
	}
	var sum, n int64
	for _, rt := range r.db.ratings {
		if rt.StoreID == storeID {
			sum += int64(rt.Rating)
			n++
		}
	}
	if n == 0 {
		return entity.Aggregate{}, nil
	}
	return entity.Aggregate{Average: float64(sum) / float64(n), Count: n}, nil
}

func (r *memRepo) UpdateStoreAggregate(_ context.Context, storeID uuid.UUID, average float64, total int64) error {
	defer r.guard()()
	s, ok := r.db.stores[storeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.AverageRating = average
	s.TotalRatings = int(total)
	r.db.stores[storeID] = s
	return nil
}

func (r *memRepo) StoreIDsRatedBy(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	defer r.guard()()
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, rt := range r.db.ratings {
		if rt.UserID == userID && !seen[rt.StoreID] {
			seen[rt.StoreID] = true
			ids = append(ids, rt.StoreID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *memRepo) StoreIDsOwnedBy(_ context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	defer r.guard()()
	var ids []uuid.UUID
	for id, st := range r.db.stores {
		if st.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *memRepo) LockUser(_ context.Context, userID uuid.UUID) (*entity.User, error) {
	defer r.guard()()
	u, ok := r.db.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

// DeleteUser mirrors the ON DELETE CASCADE foreign keys.
func (r *memRepo) DeleteUser(_ context.Context, userID uuid.UUID) error {
	defer r.guard()()
	if r.db.deleteUserErr != nil {
		return r.db.deleteUserErr
	}
	if _, ok := r.db.users[userID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.db.users, userID)
	for id, st := range r.db.stores {
		if st.OwnerID == userID {
			delete(r.db.stores, id)
		}
	}
	for id, rt := range r.db.ratings {
		if _, ok := r.db.stores[rt.StoreID]; !ok || rt.UserID == userID {
			delete(r.db.ratings, id)
		}
	}
	return nil
}

func (r *memRepo) AllStoreIDs(context.Context) ([]uuid.UUID, error) {
	defer r.guard()()
	ids := make([]uuid.UUID, 0, len(r.db.stores))
	for id := range r.db.stores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.RatingEvent
}

func (p *recordingPublisher) PublishRatingEvent(_ context.Context, event dto.RatingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []entity.Store
}

func (i *recordingIndexer) IndexStore(_ context.Context, store *entity.Store) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, *store)
	return nil
}
