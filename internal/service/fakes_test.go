package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"memberbot/internal/domain"
	"memberbot/internal/messaging"
	"memberbot/internal/repository"
)

type fakeMemberRepo struct {
	mu       sync.Mutex
	members  map[int64]domain.Member
	nextID   int64
	getDelay time.Duration

	createCalls  int
	updateCalls  int
	updateErr    error
	getErr       error
	updateBlocks bool
	listedStates []domain.State
	// staleSnapshot reemplaza el resultado de ListStale cuando no es nil.
	staleSnapshot []domain.Member
}

func newFakeMemberRepo(seed ...domain.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{members: make(map[int64]domain.Member)}
	for _, m := range seed {
		if m.ID > r.nextID {
			r.nextID = m.ID
		}
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeMemberRepo) Create(_ context.Context, m domain.Member) (domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	for _, existing := range r.members {
		if existing.ExternalUserID == m.ExternalUserID {
			return domain.Member{}, repository.ErrMemberExists
		}
	}
	r.nextID++
	m.ID = r.nextID
	r.members[m.ID] = m
	return m, nil
}

func (r *fakeMemberRepo) GetByID(_ context.Context, id int64) (domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return domain.Member{}, repository.ErrNotFound
	}
	return m, nil
}

func (r *fakeMemberRepo) GetByExternalID(_ context.Context, externalUserID string) (domain.Member, error) {
	if r.getDelay > 0 {
		time.Sleep(r.getDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return domain.Member{}, r.getErr
	}
	for _, m := range r.members {
		if m.ExternalUserID == externalUserID {
			return m, nil
		}
	}
	return domain.Member{}, repository.ErrNotFound
}

func (r *fakeMemberRepo) Update(ctx context.Context, m domain.Member) error {
	if r.updateBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.members[m.ID]; !ok {
		return repository.ErrNotFound
	}
	r.members[m.ID] = m
	return nil
}

func (r *fakeMemberRepo) ListStale(_ context.Context, states []domain.State, before time.Time) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listedStates = states
	if r.staleSnapshot != nil {
		return r.staleSnapshot, nil
	}
	out := []domain.Member{}
	for _, m := range r.members {
		for _, st := range states {
			if m.Status.State == st && m.LastActiveAt.Before(before) {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMemberRepo) byExternal(id string) (domain.Member, bool) {
	m, err := r.GetByExternalID(context.Background(), id)
	return m, err == nil
}

type sentBatch struct {
	replyToken string
	pushTo     string
	msgs       []domain.Message
}

type fakeGateway struct {
	mu         sync.Mutex
	sent       []sentBatch
	sendErr    error
	media      map[string][]byte
	mediaErr   error
	profile    messaging.Profile
	profileErr error
	// beforeSend corre antes de registrar cada envio.
	beforeSend func()
}

func (g *fakeGateway) Profile(_ context.Context, _ string) (messaging.Profile, error) {
	if g.profileErr != nil {
		return messaging.Profile{}, g.profileErr
	}
	return g.profile, nil
}

func (g *fakeGateway) Reply(_ context.Context, replyToken string, msgs []domain.Message) error {
	return g.record(sentBatch{replyToken: replyToken, msgs: msgs})
}

func (g *fakeGateway) Push(_ context.Context, userID string, msgs []domain.Message) error {
	return g.record(sentBatch{pushTo: userID, msgs: msgs})
}

func (g *fakeGateway) record(b sentBatch) error {
	if g.beforeSend != nil {
		g.beforeSend()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, b)
	return nil
}

func (g *fakeGateway) Media(_ context.Context, mediaID string) (io.ReadCloser, error) {
	if g.mediaErr != nil {
		return nil, g.mediaErr
	}
	data, ok := g.media[mediaID]
	if !ok {
		return nil, errors.New("media not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *fakeGateway) last() sentBatch {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return sentBatch{}
	}
	return g.sent[len(g.sent)-1]
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads []string
	err     error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(_ context.Context, data []byte, folder, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	path := folder + "/" + key
	s.objects[path] = data
	s.uploads = append(s.uploads, path)
	return "https://cdn.test/" + path + ".png", nil
}

func (s *fakeStorage) keysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for k := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// fakeCodes devuelve el payload como bytes para poder inspeccionarlo.
type fakeCodes struct {
	err error
}

func (c fakeCodes) Generate(payloadURL string, _ int) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []byte(payloadURL), nil
}

type harness struct {
	repo     *fakeMemberRepo
	gateway  *fakeGateway
	storage  *fakeStorage
	executor *EffectExecutor
	service  *OnboardingService
}

func newHarness(opts MachineOptions, seed ...domain.Member) *harness {
	repo := newFakeMemberRepo(seed...)
	gw := &fakeGateway{media: map[string][]byte{"media-1": []byte("jpeg-bytes")}}
	storage := newFakeStorage()
	registry := messaging.NewRegistry()
	registry.Register(domain.PlatformLINE, gw)

	executor := NewEffectExecutor(repo, registry, fakeCodes{}, storage, nil, nil, ExecutorConfig{
		PublicBaseURL: "https://bot.example.com/",
		QRSize:        128,
		Timeout:       time.Second,
	})
	svc := NewOnboardingService(nil, OnboardingDeps{
		Members:  repo,
		Machine:  NewOnboardingMachine(opts),
		Executor: executor,
		Locker:   NewMemoryMemberLocker(),
		Dedup:    NewMemoryEventDeduper(time.Hour),
		Gateways: registry,
		Timeout:  time.Second,
	})
	return &harness{repo: repo, gateway: gw, storage: storage, executor: executor, service: svc}
}

func lineEvent(ev domain.Event, eventID string) domain.Event {
	ev.Platform = domain.PlatformLINE
	ev.EventID = eventID
	ev.ReplyToken = "rt-" + eventID
	return ev
}
