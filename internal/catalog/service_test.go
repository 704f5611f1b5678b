package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/hitoshi/tunedeck/internal/model"
	"github.com/hitoshi/tunedeck/internal/security"
	"github.com/hitoshi/tunedeck/internal/storage"
)

// --- モック定義 ---

type mockSongRepo struct {
	createFn func(ctx context.Context, song *model.Song) error
	listFn   func(ctx context.Context) ([]model.Song, error)
	created  []*model.Song
}

func (m *mockSongRepo) Create(ctx context.Context, song *model.Song) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, song); err != nil {
			return err
		}
	}
	m.created = append(m.created, song)
	return nil
}

func (m *mockSongRepo) List(ctx context.Context) ([]model.Song, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.Song{}, nil
}

func (m *mockSongRepo) FindByIDs(_ context.Context, _ []string) ([]model.Song, error) {
	return nil, nil
}

func (m *mockSongRepo) ListFilePaths(_ context.Context) ([]string, error) {
	return nil, nil
}

type mockStore struct {
	saveFn   func(ctx context.Context, filename string, r io.Reader) (*storage.StoredAsset, error)
	removed  []string
	saved    []string
	savedLen []int
}

func (m *mockStore) Save(ctx context.Context, filename string, r io.Reader) (*storage.StoredAsset, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, filename, r)
	}
	data, _ := io.ReadAll(r)
	m.saved = append(m.saved, filename)
	m.savedLen = append(m.savedLen, len(data))
	return &storage.StoredAsset{Path: "stored.mp3", Size: int64(len(data)), MimeType: "audio/mpeg"}, nil
}

func (m *mockStore) Remove(_ context.Context, path string) error {
	m.removed = append(m.removed, path)
	return nil
}

func (m *mockStore) List(_ context.Context) ([]storage.AssetInfo, error) {
	return nil, nil
}

func newTestService(repo *mockSongRepo, store *mockStore) *Service {
	return NewService(repo, store, security.NewTextSanitizer(), ServiceConfig{MaxAssetSize: 1024})
}

func validInput() SongInput {
	return SongInput{Name: "Blue in Green", Artist: "Miles Davis", Genre: "jazz"}
}

func validAsset() Asset {
	return Asset{Filename: "blue.mp3", Reader: strings.NewReader("ID3 audio bytes")}
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	return apiErr.Code
}

// --- テスト ---

func TestCreate_StoresAssetAndPersistsSong(t *testing.T) {
	repo := &mockSongRepo{}
	store := &mockStore{}
	svc := newTestService(repo, store)

	song, err := svc.Create(context.Background(), validInput(), validAsset())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if song.ID == "" {
		t.Error("expected generated song ID")
	}
	if song.FilePath != "stored.mp3" {
		t.Errorf("FilePath = %q, want stored.mp3", song.FilePath)
	}
	if song.MimeType != "audio/mpeg" {
		t.Errorf("MimeType = %q, want audio/mpeg", song.MimeType)
	}
	if len(repo.created) != 1 || repo.created[0].ID != song.ID {
		t.Errorf("song not persisted: %+v", repo.created)
	}
	if len(store.saved) != 1 || store.saved[0] != "blue.mp3" {
		t.Errorf("asset not saved with original filename: %v", store.saved)
	}
}

func TestCreate_SanitizesMetadata(t *testing.T) {
	repo := &mockSongRepo{}
	svc := newTestService(repo, &mockStore{})

	song, err := svc.Create(context.Background(),
		SongInput{Name: "<b>Loud</b>", Artist: " Band <script>x()</script>", Genre: "Rock & Roll"},
		validAsset(),
	)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if song.Name != "Loud" {
		t.Errorf("Name = %q, want Loud", song.Name)
	}
	if song.Artist != "Band" {
		t.Errorf("Artist = %q, want Band", song.Artist)
	}
	if song.Genre != "Rock & Roll" {
		t.Errorf("Genre = %q, want %q", song.Genre, "Rock & Roll")
	}
}

func TestCreate_MissingFields_ReturnsValidationErrorWithoutStoring(t *testing.T) {
	tests := []struct {
		name  string
		input SongInput
		asset Asset
	}{
		{"missing name", SongInput{Artist: "a", Genre: "g"}, validAsset()},
		{"tag-only artist", SongInput{Name: "n", Artist: "<i></i>", Genre: "g"}, validAsset()},
		{"missing genre", SongInput{Name: "n", Artist: "a"}, validAsset()},
		{"missing audio", validInput(), Asset{Filename: "x.mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			svc := newTestService(&mockSongRepo{}, store)

			_, err := svc.Create(context.Background(), tt.input, tt.asset)
			if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
				t.Errorf("code = %q, want %q", code, model.ErrCodeValidation)
			}
			if len(store.saved) != 0 {
				t.Error("asset should not be stored when validation fails")
			}
		})
	}
}

func TestCreate_AssetTooLarge(t *testing.T) {
	store := &mockStore{saveFn: func(context.Context, string, io.Reader) (*storage.StoredAsset, error) {
		return nil, storage.ErrTooLarge
	}}
	svc := newTestService(&mockSongRepo{}, store)

	_, err := svc.Create(context.Background(), validInput(), validAsset())
	if code := apiErrorCode(t, err); code != model.ErrCodeAssetTooLarge {
		t.Errorf("code = %q, want %q", code, model.ErrCodeAssetTooLarge)
	}
}

func TestCreate_StoreFailure_IsInternal(t *testing.T) {
	store := &mockStore{saveFn: func(context.Context, string, io.Reader) (*storage.StoredAsset, error) {
		return nil, errors.New("disk full")
	}}
	repo := &mockSongRepo{}
	svc := newTestService(repo, store)

	_, err := svc.Create(context.Background(), validInput(), validAsset())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("expected non-API error, got %v", apiErr)
	}
	if len(repo.created) != 0 {
		t.Error("song should not be persisted when storing fails")
	}
}

func TestCreate_RepoFailure_RemovesStoredAsset(t *testing.T) {
	repo := &mockSongRepo{createFn: func(context.Context, *model.Song) error {
		return errors.New("db down")
	}}
	store := &mockStore{}
	svc := newTestService(repo, store)

	if _, err := svc.Create(context.Background(), validInput(), validAsset()); err == nil {
		t.Fatal("expected error")
	}
	if len(store.removed) != 1 || store.removed[0] != "stored.mp3" {
		t.Errorf("removed = %v, want [stored.mp3]", store.removed)
	}
}

func TestList_ReturnsAllSongs(t *testing.T) {
	repo := &mockSongRepo{listFn: func(context.Context) ([]model.Song, error) {
		return []model.Song{{ID: "1"}, {ID: "2"}}, nil
	}}
	svc := newTestService(repo, &mockStore{})

	songs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(songs) != 2 {
		t.Errorf("len(songs) = %d, want 2", len(songs))
	}
}

func TestList_RepoError(t *testing.T) {
	repo := &mockSongRepo{listFn: func(context.Context) ([]model.Song, error) {
		return nil, errors.New("db down")
	}}
	svc := newTestService(repo, &mockStore{})

	if _, err := svc.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
