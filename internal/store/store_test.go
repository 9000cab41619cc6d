package store_test

import (
	"testing"

	"github.com/pkathuria/comicden/internal/models"
	"github.com/pkathuria/comicden/internal/store"
	"github.com/pkathuria/comicden/internal/testutil"
)

func TestSnapshotDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)

	snap, err := st.GetSnapshot()
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snap.Chapter.Canonical() != "1" {
		t.Errorf("default chapter = %s, want 1", snap.Chapter.Canonical())
	}
	if snap.ChapterRate != 1 {
		t.Errorf("default chapter rate = %v, want 1", snap.ChapterRate)
	}
	if snap.MaxCachedChapters != -1 {
		t.Errorf("default max cached chapters = %d, want -1", snap.MaxCachedChapters)
	}
	if snap.QualityPreset != models.QualityBest {
		t.Errorf("default quality = %s, want best_quality", snap.QualityPreset)
	}
	if snap.CurrentLibraryPath() != "" {
		t.Errorf("expected no library path, got %s", snap.CurrentLibraryPath())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)

	mustSet := func(k, v string) {
		t.Helper()
		if err := st.Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	mustSet("provider_id", "asurascans")
	mustSet("library_manager_id", "cbz_saver")
	mustSet("title", "Solo Leveling")
	mustSet("chapter", "12.5")
	mustSet("chapter_rate", "0.5")
	mustSet("advanced.misc.quality_preset", "size")
	mustSet("advanced.misc.max_cached_chapters", "4")

	if err := st.AddLibrary("main", "/tmp/lib-a"); err != nil {
		t.Fatal(err)
	}
	if err := st.AddLibrary("backup", "/tmp/lib-b"); err != nil {
		t.Fatal(err)
	}
	mustSet("current_lib_idx", "1")

	snap, err := st.GetSnapshot()
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snap.ProviderID != "asurascans" {
		t.Errorf("provider_id = %s", snap.ProviderID)
	}
	if snap.Chapter.Canonical() != "12.5" {
		t.Errorf("chapter = %s, want 12.5", snap.Chapter.Canonical())
	}
	if snap.ChapterRate != 0.5 {
		t.Errorf("chapter_rate = %v, want 0.5", snap.ChapterRate)
	}
	if snap.QualityPreset != models.QualitySize {
		t.Errorf("quality = %s, want size", snap.QualityPreset)
	}
	if snap.MaxCachedChapters != 4 {
		t.Errorf("max cached = %d, want 4", snap.MaxCachedChapters)
	}
	if got := snap.CurrentLibraryPath(); got != "/tmp/lib-b" {
		t.Errorf("current library = %s, want /tmp/lib-b", got)
	}
	if len(snap.Libraries) != 2 || snap.Libraries[0].Name != "main" {
		t.Errorf("libraries = %+v", snap.Libraries)
	}
}
