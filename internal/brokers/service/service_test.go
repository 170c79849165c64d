package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadrouter_backend/internal/brokers/repository"
	"leadrouter_backend/internal/brokers/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"
)

type fakeRepo struct {
	brokers map[uuid.UUID]*repository.Broker
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{brokers: make(map[uuid.UUID]*repository.Broker)}
}

func (f *fakeRepo) add(name, rawPhone string, active bool) uuid.UUID {
	id := uuid.New()
	f.brokers[id] = &repository.Broker{
		ID:            id,
		Name:          name,
		Phone:         phone.Normalize(rawPhone),
		Active:        active,
		QueuePosition: len(f.brokers) + 1,
	}
	return id
}

func (f *fakeRepo) Create(ctx context.Context, params repository.CreateParams) (repository.Broker, error) {
	max := 0
	for _, b := range f.brokers {
		if b.QueuePosition > max {
			max = b.QueuePosition
		}
	}
	id := uuid.New()
	broker := &repository.Broker{
		ID:            id,
		Name:          params.Name,
		Phone:         params.Phone,
		Active:        true,
		QueuePosition: max + 1,
	}
	f.brokers[id] = broker
	return *broker, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.Broker, error) {
	broker, ok := f.brokers[id]
	if !ok {
		return repository.Broker{}, apperr.NotFound("broker not found")
	}
	return *broker, nil
}

func (f *fakeRepo) FindByPhones(ctx context.Context, phones []string) (repository.Broker, error) {
	for _, b := range f.brokers {
		for _, p := range phones {
			if b.Phone == p {
				return *b, nil
			}
		}
	}
	return repository.Broker{}, apperr.NotFound("broker not found")
}

func (f *fakeRepo) List(ctx context.Context) ([]repository.Broker, error) {
	out := make([]repository.Broker, 0, len(f.brokers))
	for _, b := range f.brokers {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuePosition < out[j].QueuePosition })
	return out, nil
}

func (f *fakeRepo) Update(ctx context.Context, params repository.UpdateParams) (repository.Broker, error) {
	broker, ok := f.brokers[params.ID]
	if !ok {
		return repository.Broker{}, apperr.NotFound("broker not found")
	}
	if params.Name != nil {
		broker.Name = *params.Name
	}
	if params.Phone != nil {
		broker.Phone = *params.Phone
	}
	return *broker, nil
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.brokers[id]; !ok {
		return apperr.NotFound("broker not found")
	}
	delete(f.brokers, id)
	return nil
}

func (f *fakeRepo) NextActive(ctx context.Context) (repository.Broker, error) {
	var best *repository.Broker
	for _, b := range f.brokers {
		if !b.Active {
			continue
		}
		if best == nil || b.QueuePosition < best.QueuePosition {
			best = b
		}
	}
	if best == nil {
		return repository.Broker{}, apperr.NotFound("no active broker")
	}
	return *best, nil
}

func (f *fakeRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (repository.Broker, error) {
	broker, ok := f.brokers[id]
	if !ok {
		return repository.Broker{}, apperr.NotFound("broker not found")
	}
	broker.Active = active
	return *broker, nil
}

func (f *fakeRepo) UpdatePositions(ctx context.Context, updates []repository.PositionUpdate) error {
	for _, u := range updates {
		if broker, ok := f.brokers[u.ID]; ok {
			broker.QueuePosition = u.QueuePosition
		}
	}
	return nil
}

type fakeLeadPhones struct {
	taken map[string]bool
}

func (f *fakeLeadPhones) PhoneInUse(ctx context.Context, phones []string) (bool, error) {
	for _, p := range phones {
		if f.taken[p] {
			return true, nil
		}
	}
	return false, nil
}

func newService(repo *fakeRepo) *Service {
	return New(repo, &fakeLeadPhones{taken: map[string]bool{}}, logger.New("test"))
}

func brokerCreate(name, rawPhone string) transport.CreateBrokerRequest {
	return transport.CreateBrokerRequest{Name: name, Phone: rawPhone}
}

// assertDense verifies positions among all brokers form exactly 1..N.
// serializedRepo counts renumbering windows that overlap: each List opens a
// window that the following UpdatePositions closes. Any overlap means two
// renumber runs raced on the same snapshot.
type serializedRepo struct {
	*fakeRepo
	mu       sync.Mutex
	inFlight int
	overlaps int
}

func (r *serializedRepo) List(ctx context.Context) ([]repository.Broker, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > 1 {
		r.overlaps++
	}
	r.mu.Unlock()
	// Widen the read-compute-write window so an unserialized caller races.
	time.Sleep(time.Millisecond)
	return r.fakeRepo.List(ctx)
}

func (r *serializedRepo) UpdatePositions(ctx context.Context, updates []repository.PositionUpdate) error {
	err := r.fakeRepo.UpdatePositions(ctx, updates)
	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return err
}

func assertDense(t *testing.T, repo *fakeRepo) {
	t.Helper()
	seen := make(map[int]bool)
	for _, b := range repo.brokers {
		if seen[b.QueuePosition] {
			t.Fatalf("duplicate queue position %d", b.QueuePosition)
		}
		seen[b.QueuePosition] = true
	}
	for i := 1; i <= len(repo.brokers); i++ {
		if !seen[i] {
			t.Fatalf("queue positions are not dense, missing %d (have %v)", i, seen)
		}
	}
}

func TestMoveToTailRotation(t *testing.T) {
	repo := newFakeRepo()
	a := repo.add("Ana", "5562981111111", true)
	b := repo.add("Bruno", "5562982222222", true)
	c := repo.add("Clara", "5562983333333", true)

	svc := newService(repo)
	ctx := context.Background()

	next, err := svc.NextActive(ctx)
	if err != nil {
		t.Fatalf("NextActive: %v", err)
	}
	if next.ID != a {
		t.Fatalf("expected head %s, got %s", a, next.ID)
	}

	if err := svc.MoveToTail(ctx, a); err != nil {
		t.Fatalf("MoveToTail: %v", err)
	}
	assertDense(t, repo)

	if repo.brokers[a].QueuePosition != 3 {
		t.Fatalf("moved broker should be at position 3, got %d", repo.brokers[a].QueuePosition)
	}
	if repo.brokers[b].QueuePosition != 1 || repo.brokers[c].QueuePosition != 2 {
		t.Fatalf("survivors should shift up: b=%d c=%d", repo.brokers[b].QueuePosition, repo.brokers[c].QueuePosition)
	}

	next, err = svc.NextActive(ctx)
	if err != nil {
		t.Fatalf("NextActive after rotation: %v", err)
	}
	if next.ID != b {
		t.Fatalf("expected new head %s, got %s", b, next.ID)
	}
}

func TestMoveToTailFullCycleReturnsToStart(t *testing.T) {
	repo := newFakeRepo()
	ids := []uuid.UUID{
		repo.add("A", "5562981111111", true),
		repo.add("B", "5562982222222", true),
		repo.add("C", "5562983333333", true),
	}

	svc := newService(repo)
	ctx := context.Background()

	for i := 0; i < len(ids); i++ {
		next, err := svc.NextActive(ctx)
		if err != nil {
			t.Fatalf("NextActive: %v", err)
		}
		if next.ID != ids[i] {
			t.Fatalf("cycle step %d: expected %s, got %s", i, ids[i], next.ID)
		}
		if err := svc.MoveToTail(ctx, next.ID); err != nil {
			t.Fatalf("MoveToTail: %v", err)
		}
		assertDense(t, repo)
	}

	next, err := svc.NextActive(ctx)
	if err != nil {
		t.Fatalf("NextActive: %v", err)
	}
	if next.ID != ids[0] {
		t.Fatalf("full cycle should return to first broker")
	}
}

func TestNextActiveSkipsInactive(t *testing.T) {
	repo := newFakeRepo()
	repo.add("Ana", "5562981111111", false)
	b := repo.add("Bruno", "5562982222222", true)

	svc := newService(repo)

	next, err := svc.NextActive(context.Background())
	if err != nil {
		t.Fatalf("NextActive: %v", err)
	}
	if next.ID != b {
		t.Fatalf("inactive broker at head must be skipped")
	}
}

func TestNextActiveEmptyQueue(t *testing.T) {
	repo := newFakeRepo()
	repo.add("Ana", "5562981111111", false)

	svc := newService(repo)

	_, err := svc.NextActive(context.Background())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRenumbersSurvivors(t *testing.T) {
	repo := newFakeRepo()
	repo.add("Ana", "5562981111111", true)
	b := repo.add("Bruno", "5562982222222", true)
	repo.add("Clara", "5562983333333", true)

	svc := newService(repo)

	if err := svc.Delete(context.Background(), b); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(repo.brokers) != 2 {
		t.Fatalf("expected 2 brokers, got %d", len(repo.brokers))
	}
	assertDense(t, repo)
}

func TestSetActivePreservesPosition(t *testing.T) {
	repo := newFakeRepo()
	a := repo.add("Ana", "5562981111111", true)
	repo.add("Bruno", "5562982222222", true)

	svc := newService(repo)
	ctx := context.Background()

	if _, err := svc.SetActive(ctx, a, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if repo.brokers[a].QueuePosition != 1 {
		t.Fatalf("deactivation must not change position, got %d", repo.brokers[a].QueuePosition)
	}

	if _, err := svc.SetActive(ctx, a, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	next, err := svc.NextActive(ctx)
	if err != nil {
		t.Fatalf("NextActive: %v", err)
	}
	if next.ID != a {
		t.Fatalf("reactivated broker should resume at its old slot")
	}
}

func TestCreateNormalizesPhoneAndAppends(t *testing.T) {
	repo := newFakeRepo()
	repo.add("Ana", "5562981111111", true)

	svc := newService(repo)

	created, err := svc.Create(context.Background(), brokerCreate("Bruno", "62982222222"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Phone != "5562982222222" {
		t.Fatalf("phone should be stored canonical, got %s", created.Phone)
	}
	if created.QueuePosition != 2 {
		t.Fatalf("new broker should join at the tail, got position %d", created.QueuePosition)
	}
}

func TestCreateRejectsLeadPhone(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, &fakeLeadPhones{taken: map[string]bool{"5562982222222": true}}, logger.New("test"))

	_, err := svc.Create(context.Background(), brokerCreate("Bruno", "62982222222"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for lead phone, got %v", err)
	}
}

func TestFindByPhoneMatchesLegacyForm(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add("Ana", "5562981804477", true)

	svc := newService(repo)

	// Inbound webhooks may carry the number without the ninth digit.
	found, err := svc.FindByPhone(context.Background(), "556281804477")
	if err != nil {
		t.Fatalf("FindByPhone: %v", err)
	}
	if found.ID != id {
		t.Fatalf("legacy twelve digit form should resolve to the same broker")
	}
}

func TestConcurrentMoveToTailStaysSerialized(t *testing.T) {
	base := newFakeRepo()
	a := base.add("Ana", "5562981111111", true)
	b := base.add("Bruno", "5562982222222", true)
	c := base.add("Clara", "5562983333333", true)

	repo := &serializedRepo{fakeRepo: base}
	svc := New(repo, &fakeLeadPhones{taken: map[string]bool{}}, logger.New("test"))

	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{a, b} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if err := svc.MoveToTail(context.Background(), id); err != nil {
				t.Errorf("MoveToTail: %v", err)
			}
		}(id)
	}
	wg.Wait()

	repo.mu.Lock()
	overlaps := repo.overlaps
	repo.mu.Unlock()
	if overlaps != 0 {
		t.Fatalf("renumbering windows overlapped %d times", overlaps)
	}

	assertDense(t, base)

	// Whatever order the two moves land in, the untouched broker must end
	// up at the head. A stale snapshot would leave a moved broker there.
	head, err := svc.NextActive(context.Background())
	if err != nil {
		t.Fatalf("NextActive: %v", err)
	}
	if head.ID != c {
		t.Fatalf("head should be the unmoved broker, got %s", head.Name)
	}
}
