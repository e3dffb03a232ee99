package story

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"horror-nobel-api/internal/application/narration"
	"horror-nobel-api/internal/application/narrative"
	"horror-nobel-api/internal/application/typeset"
	"horror-nobel-api/internal/domain/entity"
	"horror-nobel-api/internal/domain/repository"
	"horror-nobel-api/internal/domain/service"
	"horror-nobel-api/internal/infrastructure/mail"
	wfmodel "horror-nobel-api/internal/workflow/model"
	apperrors "horror-nobel-api/pkg/errors"
	"horror-nobel-api/pkg/logger"
)

type memRepo struct {
	mu      sync.Mutex
	stories map[string]*entity.Story
}

func newMemRepo() *memRepo { return &memRepo{stories: map[string]*entity.Story{}} }

func clone(s *entity.Story) *entity.Story {
	cp := *s
	cp.ChatHistory = append([]entity.ChatTurn(nil), s.ChatHistory...)
	cp.AudioURLs = append([]string(nil), s.AudioURLs...)
	return &cp
}

func (r *memRepo) Create(_ context.Context, s *entity.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stories[s.ID] = clone(s)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*entity.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stories[id]
	if !ok {
		return nil, apperrors.ErrStoryNotFound
	}
	return clone(s), nil
}

func (r *memRepo) Update(_ context.Context, s *entity.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stories[s.ID]; !ok {
		return apperrors.ErrStoryNotFound
	}
	r.stories[s.ID] = clone(s)
	return nil
}

func (r *memRepo) ListByEmail(_ context.Context, email string, p repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.Story
	for _, s := range r.stories {
		if s.Email == email {
			items = append(items, clone(s))
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *memRepo) IsEmailUsed(_ context.Context, email, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.stories {
		if s.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type fakeGenerator struct {
	continues []*wfmodel.StoryContinueInput
	finals    int
	fail      bool
}

func (g *fakeGenerator) Opening(_ context.Context, in *wfmodel.StoryOpeningInput) (string, error) {
	if g.fail {
		return "", errors.New("llm down")
	}
	return "暗い廊下に立っている。", nil
}

func (g *fakeGenerator) Continue(_ context.Context, in *wfmodel.StoryContinueInput) (string, error) {
	if g.fail {
		return "", errors.New("llm down")
	}
	g.continues = append(g.continues, in)
	return fmt.Sprintf("続き%d", in.Turn), nil
}

func (g *fakeGenerator) Final(context.Context, *wfmodel.StoryFinalInput) (string, error) {
	if g.fail {
		return "", errors.New("llm down")
	}
	g.finals++
	return "【消えた灯】\n\n" + strings.Repeat("闇が広がる。", 40), nil
}

type fakeMailer struct {
	sent []mail.Letter
	err  error
}

func (m *fakeMailer) Send(_ context.Context, l mail.Letter) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, l)
	return nil
}

func (m *fakeMailer) Provider() string { return "fake" }

type fakeQueue struct{ jobs []string }

func (q *fakeQueue) EnqueueEmail(_ context.Context, storyID, email string) (string, error) {
	q.jobs = append(q.jobs, storyID+"|"+email)
	return "1-0", nil
}

type fakeLocker struct{ held map[string]bool }

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error { delete(l.held, key); return nil }, true, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(context.Context, string) []byte { return []byte("%PDF-test") }

type fakeSynth struct{}

func (fakeSynth) Synthesize(_ context.Context, text, _ string, _ float64) ([]byte, error) {
	return []byte("mp3"), nil
}

type memAudio struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memAudio) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return nil
}

func (m *memAudio) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok, nil
}

func (m *memAudio) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[name], nil
}

func (m *memAudio) URL(name string) string { return "/static/audio/" + name }

type fixture struct {
	svc    *Service
	repo   *memRepo
	gen    *fakeGenerator
	mailer *fakeMailer
	locker *fakeLocker
}

func newFixture(t *testing.T, opts Options, queue service.Availability[EmailQueue]) *fixture {
	t.Helper()
	catalog, err := narrative.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		repo:   newMemRepo(),
		gen:    &fakeGenerator{},
		mailer: &fakeMailer{},
		locker: &fakeLocker{held: map[string]bool{}},
	}
	narr := narration.NewService(
		service.Available[narration.Synthesizer](fakeSynth{}),
		&memAudio{files: map[string][]byte{}},
		service.Unavailable[narration.URLCache]("no redis"),
		narration.Options{},
	)
	f.svc = NewService(Deps{
		Repo:      f.repo,
		Generator: service.Available[Generator](f.gen),
		Catalog:   catalog,
		Narration: narr,
		Renderer:  fakeRenderer{},
		Mailer:    service.Available[mail.Sender](f.mailer),
		Locker:    service.Available[Locker](f.locker),
		Queue:     queue,
	}, opts)
	return f
}

func noQueue() service.Availability[EmailQueue] {
	return service.Unavailable[EmailQueue]("no stream")
}

func (f *fixture) createStory(t *testing.T) *entity.Story {
	t.Helper()
	st, err := f.svc.Create(context.Background(), map[string]string{"q1": "a", "q2": "b"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return st
}

func (f *fixture) completedStory(t *testing.T) *entity.Story {
	t.Helper()
	st := f.createStory(t)
	if _, err := f.svc.Chat(context.Background(), st.ID, "扉を開ける"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	done, err := f.svc.Complete(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	return done
}

func TestCreate(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	st := f.createStory(t)
	if st.Status != entity.StoryStatusInProgress || len(st.ChatHistory) != 1 || st.ChatHistory[0].Role != entity.RoleModel {
		t.Fatalf("story = %+v", st)
	}
	if _, err := f.repo.GetByID(context.Background(), st.ID); err != nil {
		t.Fatalf("not persisted: %v", err)
	}

	if _, err := f.svc.Create(context.Background(), map[string]string{"q1": "z"}); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("invalid answers err = %v", err)
	}
	f.gen.fail = true
	if _, err := f.svc.Create(context.Background(), map[string]string{"q1": "a"}); !errors.Is(err, apperrors.ErrGenerationFailed) {
		t.Fatalf("generation err = %v", err)
	}
}

func TestChatFollowsPhases(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	st := f.createStory(t)
	ctx := context.Background()

	wantLabels := []narrative.PhaseLabel{
		narrative.PhaseRising, narrative.PhaseRising, narrative.PhasePreClimax, narrative.PhaseResolution,
	}
	for i, want := range wantLabels {
		res, err := f.svc.Chat(ctx, st.ID, fmt.Sprintf("行動%d", i+1))
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		if res.Phase.Label != want {
			t.Errorf("turn %d: label = %s", i+1, res.Phase.Label)
		}
	}
	last := f.gen.continues[3]
	if last.Turn != 4 || last.Stage != "結" || last.History[len(last.History)-1].Content != "行動4" {
		t.Fatalf("final continue input = %+v", last)
	}

	stored, _ := f.repo.GetByID(ctx, st.ID)
	if len(stored.ChatHistory) != 9 || stored.UserTurns() != 4 {
		t.Fatalf("history len = %d", len(stored.ChatHistory))
	}

	// 超出轮数时回落到「承」
	res, err := f.svc.Chat(ctx, st.ID, "まだ続ける")
	if err != nil {
		t.Fatalf("turn 5: %v", err)
	}
	if !res.Phase.Fallback || res.Phase.Label != narrative.PhaseRising {
		t.Fatalf("turn 5 phase = %+v", res.Phase)
	}
}

func TestChatStrictTurnsAndValidation(t *testing.T) {
	f := newFixture(t, Options{TotalTurns: 2, StrictTurns: true, MaxMessageLength: 5}, noQueue())
	st := f.createStory(t)
	ctx := context.Background()

	if _, err := f.svc.Chat(ctx, st.ID, "   "); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("empty err = %v", err)
	}
	if _, err := f.svc.Chat(ctx, st.ID, "六文字の言葉"); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("too long err = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := f.svc.Chat(ctx, st.ID, "進む"); err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
	}
	if _, err := f.svc.Chat(ctx, st.ID, "進む"); !errors.Is(err, apperrors.ErrTurnLimit) {
		t.Fatalf("turn 3 err = %v", err)
	}
	if _, err := f.svc.Chat(ctx, "missing", "進む"); !errors.Is(err, apperrors.ErrStoryNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestCompleteIsIdempotentAndLocked(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	ctx := context.Background()

	fresh := f.createStory(t)
	if _, err := f.svc.Complete(ctx, fresh.ID); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("complete without turns err = %v", err)
	}

	if _, err := f.svc.Chat(ctx, fresh.ID, "走る"); err != nil {
		t.Fatal(err)
	}
	f.locker.held["story:lock:"+fresh.ID] = true
	if _, err := f.svc.Complete(ctx, fresh.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("locked err = %v", err)
	}
	delete(f.locker.held, "story:lock:"+fresh.ID)

	done, err := f.svc.Complete(ctx, fresh.ID)
	if err != nil || !done.IsCompleted() || !done.HasNovel() {
		t.Fatalf("Complete = %+v, %v", done, err)
	}
	if len(f.locker.held) != 0 {
		t.Fatal("lock not released")
	}
	if _, err := f.svc.Complete(ctx, fresh.ID); err != nil || f.gen.finals != 1 {
		t.Fatalf("second complete err=%v finals=%d", err, f.gen.finals)
	}
	if _, err := f.svc.Chat(ctx, fresh.ID, "まだ"); !errors.Is(err, apperrors.ErrStoryCompleted) {
		t.Fatalf("chat after complete err = %v", err)
	}
}

func TestSendEmailInlineAndReuse(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	ctx := context.Background()
	st := f.completedStory(t)

	queued, err := f.svc.SendEmail(ctx, st.ID, " Reader@Example.com ")
	if err != nil || queued {
		t.Fatalf("SendEmail = %v, %v", queued, err)
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent = %d", len(f.mailer.sent))
	}
	l := f.mailer.sent[0]
	if l.To != "reader@example.com" || l.Title != "消えた灯" || string(l.PDF) != "%PDF-test" {
		t.Fatalf("letter = %+v", l)
	}
	stored, _ := f.repo.GetByID(ctx, st.ID)
	if stored.Email != "reader@example.com" {
		t.Fatalf("email not recorded: %q", stored.Email)
	}

	// 同一故事可以重发，其他故事不能复用该邮箱
	if _, err := f.svc.SendEmail(ctx, st.ID, "reader@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	other := f.completedStory(t)
	if _, err := f.svc.SendEmail(ctx, other.ID, "reader@example.com"); !errors.Is(err, apperrors.ErrEmailUsed) {
		t.Fatalf("reuse err = %v", err)
	}
	if _, err := f.svc.SendEmail(ctx, other.ID, "not-an-email"); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("invalid email err = %v", err)
	}

	list, err := f.svc.ListByEmail(ctx, "reader@example.com", 1, 10)
	if err != nil || list.Total != 1 {
		t.Fatalf("ListByEmail = %+v, %v", list, err)
	}
}

func TestSendEmailDevModeAndQueue(t *testing.T) {
	queue := &fakeQueue{}
	f := newFixture(t, Options{DevMode: true}, service.Available[EmailQueue](queue))
	ctx := context.Background()

	a := f.completedStory(t)
	b := f.completedStory(t)
	if _, err := f.svc.Deliver(ctx, a.ID, "same@example.com"); err != nil {
		t.Fatal(err)
	}
	queued, err := f.svc.SendEmail(ctx, b.ID, "same@example.com")
	if err != nil || !queued {
		t.Fatalf("SendEmail = %v, %v", queued, err)
	}
	if len(queue.jobs) != 1 || queue.jobs[0] != b.ID+"|same@example.com" {
		t.Fatalf("jobs = %v", queue.jobs)
	}

	in := f.createStory(t)
	if _, err := f.svc.SendEmail(ctx, in.ID, "x@example.com"); !errors.Is(err, apperrors.ErrNovelNotReady) {
		t.Fatalf("not ready err = %v", err)
	}
}

func TestDeliverMailFailure(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	st := f.completedStory(t)
	f.mailer.err = errors.New("smtp refused")

	if _, err := f.svc.Deliver(context.Background(), st.ID, "a@example.com"); !errors.Is(err, apperrors.ErrMailFailed) {
		t.Fatalf("err = %v", err)
	}

	masked := newFixture(t, Options{MaskMailFailure: true}, noQueue())
	st2 := masked.completedStory(t)
	masked.mailer.err = errors.New("smtp refused")
	if _, err := masked.svc.Deliver(context.Background(), st2.ID, "a@example.com"); err != nil {
		t.Fatalf("masked err = %v", err)
	}
}

func TestFinish(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	st := f.createStory(t)
	if _, err := f.svc.Chat(context.Background(), st.ID, "逃げる"); err != nil {
		t.Fatal(err)
	}
	done, err := f.svc.Finish(context.Background(), st.ID, "end@example.com")
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !done.IsCompleted() || done.Email != "end@example.com" || len(f.mailer.sent) != 1 {
		t.Fatalf("finished = %+v", done)
	}
}

func TestAudioAndPDF(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	ctx := context.Background()

	in := f.createStory(t)
	if _, err := f.svc.Audio(ctx, in.ID); !errors.Is(err, apperrors.ErrNovelNotReady) {
		t.Fatalf("audio before completion err = %v", err)
	}
	if _, _, err := f.svc.PDF(ctx, in.ID); !errors.Is(err, apperrors.ErrNovelNotReady) {
		t.Fatalf("pdf before completion err = %v", err)
	}

	st := f.completedStory(t)
	urls, err := f.svc.Audio(ctx, st.ID)
	if err != nil || len(urls) == 0 {
		t.Fatalf("Audio = %v, %v", urls, err)
	}
	stored, _ := f.repo.GetByID(ctx, st.ID)
	if len(stored.AudioURLs) != len(urls) {
		t.Fatalf("audio urls not recorded: %v", stored.AudioURLs)
	}
	if _, err := f.svc.AudioChunk(ctx, st.ID, len(urls)); !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("out of range err = %v", err)
	}
	full, err := f.svc.AudioComplete(ctx, st.ID)
	if err != nil || full != "/static/audio/"+st.ID+"_complete.mp3" {
		t.Fatalf("AudioComplete = %q, %v", full, err)
	}

	pdf, title, err := f.svc.PDF(ctx, st.ID)
	if err != nil || string(pdf) != "%PDF-test" || title != "消えた灯" {
		t.Fatalf("PDF = %q %q %v", pdf, title, err)
	}
}

func TestCreateWithoutLLM(t *testing.T) {
	f := newFixture(t, Options{}, noQueue())
	f.svc.Generator = service.Unavailable[Generator]("no api key")
	_, err := f.svc.Create(context.Background(), map[string]string{"q1": "a"})
	if !errors.Is(err, apperrors.ErrServiceUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestNovelTitle(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", "text")
	t.Cleanup(func() { logger.Init("info", "text") })

	ctx := context.Background()
	cases := []struct{ novel, want string }{
		{novel: "【消えた灯】\n\n廊下の奥で音がした。", want: "消えた灯"},
		{novel: "廊下の奥で音がした。", want: typeset.DefaultTitle},
		{novel: "", want: typeset.DefaultTitle},
	}
	for _, tc := range cases {
		if got := novelTitle(ctx, tc.novel); got != tc.want {
			t.Errorf("novelTitle(%q) = %q, want %q", tc.novel, got, tc.want)
		}
	}
	if strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("unexpected warning: %s", buf.String())
	}
}
