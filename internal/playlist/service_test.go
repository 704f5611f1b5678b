package playlist

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/hitoshi/tunedeck/internal/model"
	"github.com/hitoshi/tunedeck/internal/repository"
	"github.com/hitoshi/tunedeck/internal/security"
)

// --- モック定義 ---

// memoryPlaylistRepo はplaylist_songsの主キー制約と同じ集合セマンティクスを持つインメモリ実装。
type memoryPlaylistRepo struct {
	mu        sync.Mutex
	playlists map[string]*model.Playlist
	order     []string

	addSongsErr error
}

func newMemoryPlaylistRepo() *memoryPlaylistRepo {
	return &memoryPlaylistRepo{playlists: make(map[string]*model.Playlist)}
}

func (m *memoryPlaylistRepo) Create(_ context.Context, p *model.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	copied.SongIDs = nil
	m.playlists[p.ID] = &copied
	m.order = append(m.order, p.ID)
	m.addLocked(p.ID, p.SongIDs)
	return nil
}

func (m *memoryPlaylistRepo) FindByID(_ context.Context, id string) (*model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.playlists[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	copied.SongIDs = append([]string{}, p.SongIDs...)
	return &copied, nil
}

func (m *memoryPlaylistRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Playlist{}
	for _, id := range m.order {
		p, ok := m.playlists[id]
		if !ok || p.OwnerID != ownerID {
			continue
		}
		copied := *p
		copied.SongIDs = append([]string{}, p.SongIDs...)
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryPlaylistRepo) AddSongs(_ context.Context, playlistID string, songIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addSongsErr != nil {
		return m.addSongsErr
	}
	if _, ok := m.playlists[playlistID]; !ok {
		return repository.ErrNotFound
	}
	m.addLocked(playlistID, songIDs)
	return nil
}

func (m *memoryPlaylistRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playlists[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.playlists, id)
	return nil
}

func (m *memoryPlaylistRepo) addLocked(id string, songIDs []string) {
	p := m.playlists[id]
	for _, s := range songIDs {
		if !contains(p.SongIDs, s) {
			p.SongIDs = append(p.SongIDs, s)
		}
	}
}

type mockSongRepo struct {
	songs       map[string]model.Song
	findByIDsFn func(ctx context.Context, ids []string) ([]model.Song, error)
	calls       int
}

func (m *mockSongRepo) Create(_ context.Context, _ *model.Song) error { return nil }

func (m *mockSongRepo) List(_ context.Context) ([]model.Song, error) { return nil, nil }

func (m *mockSongRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Song, error) {
	m.calls++
	if m.findByIDsFn != nil {
		return m.findByIDsFn(ctx, ids)
	}
	var out []model.Song
	for _, id := range ids {
		if s, ok := m.songs[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSongRepo) ListFilePaths(_ context.Context) ([]string, error) { return nil, nil }

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

var (
	alice = model.Identity{UserID: "user-alice", Username: "alice"}
	bob   = model.Identity{UserID: "user-bob", Username: "bob"}
)

func newTestService() (*Service, *memoryPlaylistRepo, *mockSongRepo) {
	playlists := newMemoryPlaylistRepo()
	songs := &mockSongRepo{songs: map[string]model.Song{
		"s1": {ID: "s1", Name: "One"},
		"s2": {ID: "s2", Name: "Two"},
		"s3": {ID: "s3", Name: "Three"},
	}}
	return NewService(playlists, songs, security.NewTextSanitizer()), playlists, songs
}

func songIDsOf(songs []model.Song) []string {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T: %v", code, err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

func TestCreate_ThenAddSongs_MergesAsSetUnion(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, "Chill", []string{"s1", "s2"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !reflect.DeepEqual(created.SongIDs, []string{"s1", "s2"}) {
		t.Errorf("SongIDs = %v, want [s1 s2]", created.SongIDs)
	}

	updated, err := svc.AddSongs(ctx, alice, created.ID, []string{"s2", "s3"})
	if err != nil {
		t.Fatalf("AddSongs returned error: %v", err)
	}
	if !reflect.DeepEqual(updated.SongIDs, []string{"s1", "s2", "s3"}) {
		t.Errorf("SongIDs = %v, want [s1 s2 s3]", updated.SongIDs)
	}
	if !reflect.DeepEqual(songIDsOf(updated.Songs), []string{"s1", "s2", "s3"}) {
		t.Errorf("Songs = %v, want [s1 s2 s3]", songIDsOf(updated.Songs))
	}
}

func TestAddSongs_UnionProperty(t *testing.T) {
	tests := []struct {
		name string
		s1   []string
		s2   []string
	}{
		{"disjoint", []string{"a", "b"}, []string{"c"}},
		{"overlapping", []string{"a", "b"}, []string{"b", "c"}},
		{"identical", []string{"a"}, []string{"a"}},
		{"duplicates within input", []string{"a", "a"}, []string{"b", "b", "a"}},
		{"empty second", []string{"a"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			ctx := context.Background()

			p, err := svc.Create(ctx, alice, "P", nil)
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}
			if _, err := svc.AddSongs(ctx, alice, p.ID, tt.s1); err != nil {
				t.Fatalf("AddSongs(S1) returned error: %v", err)
			}
			got, err := svc.AddSongs(ctx, alice, p.ID, tt.s2)
			if err != nil {
				t.Fatalf("AddSongs(S2) returned error: %v", err)
			}

			want := map[string]struct{}{}
			for _, id := range append(append([]string{}, tt.s1...), tt.s2...) {
				want[id] = struct{}{}
			}
			if len(got.SongIDs) != len(want) {
				t.Errorf("SongIDs = %v, want %d unique IDs", got.SongIDs, len(want))
			}
			for _, id := range got.SongIDs {
				if _, ok := want[id]; !ok {
					t.Errorf("unexpected ID %q", id)
				}
			}
		})
	}
}

func TestCreate_DeduplicatesAndTrimsSongIDs(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.Create(context.Background(), alice, "Mix", []string{"s1", " s1 ", "", "s2", "s1"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !reflect.DeepEqual(p.SongIDs, []string{"s1", "s2"}) {
		t.Errorf("SongIDs = %v, want [s1 s2]", p.SongIDs)
	}
}

func TestCreate_DanglingSongIDs_KeptButNotExpanded(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.Create(context.Background(), alice, "Mix", []string{"s1", "ghost"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !reflect.DeepEqual(p.SongIDs, []string{"s1", "ghost"}) {
		t.Errorf("SongIDs = %v, want [s1 ghost]", p.SongIDs)
	}
	if !reflect.DeepEqual(songIDsOf(p.Songs), []string{"s1"}) {
		t.Errorf("Songs = %v, want [s1]", songIDsOf(p.Songs))
	}
}

func TestCreate_SetsOwnerAndSanitizesName(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.Create(context.Background(), alice, " <b>Chill</b> ", nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if p.OwnerID != alice.UserID {
		t.Errorf("OwnerID = %q, want %q", p.OwnerID, alice.UserID)
	}
	if p.Name != "Chill" {
		t.Errorf("Name = %q, want Chill", p.Name)
	}
	if p.SongIDs == nil || p.Songs == nil {
		t.Error("expected non-nil empty slices for JSON encoding")
	}
}

func TestCreate_BlankName_ReturnsValidationError(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), alice, "  ", nil)
	assertCode(t, err, model.ErrCodeValidation)
}

func TestListForOwner_NeverReturnsOtherOwners(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, alice, "A1", []string{"s1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, bob, "B1", []string{"s2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, alice, "A2", nil); err != nil {
		t.Fatal(err)
	}

	lists, err := svc.ListForOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}
	var names []string
	for _, p := range lists {
		if p.OwnerID != alice.UserID {
			t.Errorf("playlist %s belongs to %s", p.ID, p.OwnerID)
		}
		names = append(names, p.Name)
	}
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"A1", "A2"}) {
		t.Errorf("names = %v, want [A1 A2]", names)
	}
}

func TestListForOwner_Empty_ReturnsEmptySlice(t *testing.T) {
	svc, _, songs := newTestService()

	lists, err := svc.ListForOwner(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}
	if lists == nil || len(lists) != 0 {
		t.Errorf("lists = %v, want empty non-nil slice", lists)
	}
	if songs.calls != 0 {
		t.Errorf("FindByIDs called %d times, want 0", songs.calls)
	}
}

func TestListForOwner_ResolvesSongsInSingleQuery(t *testing.T) {
	svc, _, songs := newTestService()
	ctx := context.Background()
	svc.Create(ctx, alice, "A1", []string{"s1", "s2"})
	svc.Create(ctx, alice, "A2", []string{"s2", "s3"})
	songs.calls = 0

	if _, err := svc.ListForOwner(ctx, alice); err != nil {
		t.Fatalf("ListForOwner returned error: %v", err)
	}
	if songs.calls != 1 {
		t.Errorf("FindByIDs called %d times, want 1", songs.calls)
	}
}

func TestMutations_OtherOwner_ReturnsNotFound(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, alice, "Private", []string{"s1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.AddSongs(ctx, bob, p.ID, []string{"s2"})
	assertCode(t, err, model.ErrCodePlaylistNotFound)

	err = svc.Delete(ctx, bob, p.ID)
	assertCode(t, err, model.ErrCodePlaylistNotFound)

	_, err = svc.Get(ctx, bob, p.ID)
	assertCode(t, err, model.ErrCodePlaylistNotFound)

	stored, _ := repo.FindByID(ctx, p.ID)
	if stored == nil {
		t.Fatal("playlist was deleted by non-owner")
	}
	if !reflect.DeepEqual(stored.SongIDs, []string{"s1"}) {
		t.Errorf("SongIDs changed by non-owner: %v", stored.SongIDs)
	}
}

func TestMutations_MissingPlaylist_ReturnsNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddSongs(ctx, alice, "missing", []string{"s1"})
	assertCode(t, err, model.ErrCodePlaylistNotFound)

	err = svc.Delete(ctx, alice, "missing")
	assertCode(t, err, model.ErrCodePlaylistNotFound)
}

func TestDelete_RemovesPlaylist(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, _ := svc.Create(ctx, alice, "Temp", nil)
	if err := svc.Delete(ctx, alice, p.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	lists, _ := svc.ListForOwner(ctx, alice)
	if len(lists) != 0 {
		t.Errorf("expected no playlists after delete, got %d", len(lists))
	}
}

func TestAddSongs_RepoError_IsInternal(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	p, _ := svc.Create(ctx, alice, "P", nil)
	repo.addSongsErr = errors.New("db down")

	_, err := svc.AddSongs(ctx, alice, p.ID, []string{"s1"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("expected non-API error, got %v", apiErr)
	}
}

func TestExpand_SongLookupError(t *testing.T) {
	svc, _, songs := newTestService()
	songs.findByIDsFn = func(context.Context, []string) ([]model.Song, error) {
		return nil, errors.New("db down")
	}

	if _, err := svc.Create(context.Background(), alice, "P", []string{"s1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeSongIDs(t *testing.T) {
	got := normalizeSongIDs([]string{"b", "a", "b", " ", "c", "a"})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeSongIDs = %v, want %v", got, want)
	}
	if got := normalizeSongIDs(nil); got == nil || len(got) != 0 {
		t.Errorf("normalizeSongIDs(nil) = %v, want empty slice", got)
	}
}
