package alert

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "alerts"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func mustInsert(t *testing.T, s *Store, a Alert) Alert {
	t.Helper()
	got, err := s.Insert(a, nil)
	if err != nil {
		t.Fatalf("Insert(%q): %v", a.Title, err)
	}
	return got
}

func ids(alerts []Alert) []string {
	var out []string
	for _, a := range alerts {
		out = append(out, a.ID)
	}
	return out
}

func TestInsertAssignsIDAndTime(t *testing.T) {
	s := setupStore(t)
	a := mustInsert(t, s, Alert{Title: "Build done", Message: "ok"})

	if a.ID == "" || !ValidID(a.ID) {
		t.Fatalf("expected a valid generated ID, got %q", a.ID)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if _, err := os.Stat(filepath.Join(s.Dir, a.ID+".yaml")); err != nil {
		t.Errorf("record file missing: %v", err)
	}
}

func TestInsertWithoutDedupeKeyAddsExactlyOne(t *testing.T) {
	s := setupStore(t)
	mustInsert(t, s, Alert{Title: "one", Message: "m"})

	before, _ := s.Count(Query{})
	a := mustInsert(t, s, Alert{Title: "two", Message: "m"})
	after, _ := s.Count(Query{})
	if after != before+1 {
		t.Errorf("count went from %d to %d, want +1", before, after)
	}

	all, err := s.Query(Query{})
	if err != nil {
		t.Fatal(err)
	}
	seen := 0
	for _, x := range all {
		if x.ID == a.ID {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("inserted alert listed %d times, want 1", seen)
	}
}

func TestInsertRejectsInvalid(t *testing.T) {
	s := setupStore(t)
	for _, a := range []Alert{
		{Message: "no title"},
		{Title: "no message"},
		{Title: "t", Message: "m", ID: "../escape"},
	} {
		if _, err := s.Insert(a, nil); !errors.Is(err, ErrInvalid) {
			t.Errorf("Insert(%+v): expected ErrInvalid, got %v", a, err)
		}
	}
	if n, _ := s.Count(Query{}); n != 0 {
		t.Errorf("expected nothing persisted, got %d", n)
	}
}

func TestInsertRoundTripsFields(t *testing.T) {
	s := setupStore(t)
	in := Alert{
		Title:     "Deploy",
		Message:   "prod is live",
		OnClick:   "open https://example.com",
		Icon:      "rocket",
		Sound:     true,
		Tags:      []string{"work", " ", "ops", "work"},
		Source:    "ci",
		Session:   "run-42",
		Kind:      "deploy",
		DedupeKey: "deploy:prod",
	}
	a := mustInsert(t, s, in)

	got, err := s.Get(a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OnClick != in.OnClick || got.Icon != in.Icon || !got.Sound {
		t.Errorf("optional fields not preserved: %+v", got)
	}
	if strings.Join(got.Tags, ",") != "work,ops" {
		t.Errorf("tags = %v, want [work ops]", got.Tags)
	}
	if got.Source != "ci" || got.Session != "run-42" || got.Kind != "deploy" || got.DedupeKey != "deploy:prod" {
		t.Errorf("metadata not preserved: %+v", got)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, a.CreatedAt)
	}

	data, _ := os.ReadFile(filepath.Join(s.Dir, a.ID+".yaml"))
	for _, key := range []string{"title:", "message:", "on_click:", "dedupe_key:", "created_at:", "tags:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("record file missing key %s:\n%s", key, data)
		}
	}
}

func TestDedupeSessionScope(t *testing.T) {
	s := setupStore(t)
	var replaced []string
	onReplace := func(old Alert) { replaced = append(replaced, old.ID) }

	a, _ := s.Insert(Alert{Title: "A", Message: "m", DedupeKey: "K", Session: "S1"}, onReplace)
	b, _ := s.Insert(Alert{Title: "B", Message: "m", DedupeKey: "K", Session: "S1"}, onReplace)

	got, _ := s.Query(Query{DedupeKeys: []string{"K"}, Sessions: []string{"S1"}})
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("expected only B under S1, got %v", ids(got))
	}
	if len(replaced) != 1 || replaced[0] != a.ID {
		t.Errorf("replaced = %v, want [%s]", replaced, a.ID)
	}

	c, _ := s.Insert(Alert{Title: "C", Message: "m", DedupeKey: "K", Session: "S2"}, onReplace)
	got, _ = s.Query(Query{DedupeKeys: []string{"K"}})
	if strings.Join(ids(got), ",") != b.ID+","+c.ID {
		t.Errorf("expected B and C to both remain, got %v", ids(got))
	}
}

func TestDedupeGlobalScope(t *testing.T) {
	s := setupStore(t)
	mustInsert(t, s, Alert{Title: "scoped", Message: "m", DedupeKey: "K", Session: "S1"})
	mustInsert(t, s, Alert{Title: "A", Message: "m", DedupeKey: "K"})
	b := mustInsert(t, s, Alert{Title: "B", Message: "m", DedupeKey: "K"})
	other := mustInsert(t, s, Alert{Title: "other", Message: "m", DedupeKey: "J"})

	got, _ := s.Query(Query{DedupeKeys: []string{"K"}})
	if len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("expected only B for K, got %v", ids(got))
	}
	if _, err := s.Get(other.ID); err != nil {
		t.Errorf("unrelated key should survive: %v", err)
	}
}

func TestDedupeReplacesWithLatestMessage(t *testing.T) {
	s := setupStore(t)
	base := Alert{Title: "Pi task update", Source: "pi-agent", Session: "S1", Kind: "update", DedupeKey: "pi:update:S1"}

	first := base
	first.Message = "step 1"
	second := base
	second.Message = "step 2"
	mustInsert(t, s, first)
	mustInsert(t, s, second)

	all, _ := s.Query(Query{})
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if all[0].Message != "step 2" {
		t.Errorf("message = %q, want second call's message", all[0].Message)
	}
}

func TestQueryOrderAndIdempotence(t *testing.T) {
	s := setupStore(t)
	var want []string
	for _, title := range []string{"first", "second", "third"} {
		want = append(want, mustInsert(t, s, Alert{Title: title, Message: "m"}).ID)
	}

	got1, _ := s.Query(Query{})
	got2, _ := s.Query(Query{})
	if strings.Join(ids(got1), ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", ids(got1), want)
	}
	if strings.Join(ids(got1), ",") != strings.Join(ids(got2), ",") {
		t.Error("repeated query returned a different sequence")
	}
}

func TestQueryTagsAnyOf(t *testing.T) {
	s := setupStore(t)
	c := mustInsert(t, s, Alert{Title: "c", Message: "m", Tags: []string{"claude"}})
	w := mustInsert(t, s, Alert{Title: "w", Message: "m", Tags: []string{"work", "later"}})
	mustInsert(t, s, Alert{Title: "x", Message: "m", Tags: []string{"home"}})

	got, _ := s.Query(Query{Tags: []string{"claude", "work"}})
	if strings.Join(ids(got), ",") != c.ID+","+w.ID {
		t.Errorf("got %v, want claude OR work", ids(got))
	}
}

func TestRemove(t *testing.T) {
	s := setupStore(t)
	a := mustInsert(t, s, Alert{Title: "t", Message: "m", OnClick: "echo hi"})

	got, err := s.Remove(a.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got.OnClick != "echo hi" {
		t.Errorf("removed record should carry on_click, got %+v", got)
	}
	if _, err := s.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestRemoveMissingLeavesStoreUntouched(t *testing.T) {
	s := setupStore(t)
	a := mustInsert(t, s, Alert{Title: "keep", Message: "m"})
	before, _ := os.ReadFile(filepath.Join(s.Dir, a.ID+".yaml"))

	for _, id := range []string{"20260101T000000.000-deadbeef", "../etc/passwd", ""} {
		if _, err := s.Remove(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Remove(%q): expected ErrNotFound, got %v", id, err)
		}
	}

	if n, _ := s.Count(Query{}); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	after, _ := os.ReadFile(filepath.Join(s.Dir, a.ID+".yaml"))
	if string(before) != string(after) {
		t.Error("record content changed")
	}
}

func TestRemoveMatching(t *testing.T) {
	s := setupStore(t)
	hit := mustInsert(t, s, Alert{Title: "hit", Message: "m", Source: "pi-agent", Session: "S1"})
	mustInsert(t, s, Alert{Title: "other session", Message: "m", Source: "pi-agent", Session: "S2"})
	mustInsert(t, s, Alert{Title: "other source", Message: "m", Source: "codex", Session: "S1"})
	mustInsert(t, s, Alert{Title: "bare", Message: "m"})

	before, _ := s.Count(Query{})
	removed, err := s.RemoveMatching(Query{Sources: []string{"pi-agent"}, Sessions: []string{"S1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0].ID != hit.ID {
		t.Fatalf("removed = %v, want only %s", ids(removed), hit.ID)
	}
	after, _ := s.Count(Query{})
	if after != before-len(removed) {
		t.Errorf("count after = %d, want %d", after, before-len(removed))
	}
}

func TestRemoveMatchingEmptyQueryRemovesAll(t *testing.T) {
	s := setupStore(t)
	mustInsert(t, s, Alert{Title: "a", Message: "m"})
	mustInsert(t, s, Alert{Title: "b", Message: "m", Kind: "k"})

	removed, err := s.RemoveMatching(Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Errorf("removed %d, want 2", len(removed))
	}
	if n, _ := s.Count(Query{}); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestCorruptRecordsAreSkipped(t *testing.T) {
	s := setupStore(t)
	good := mustInsert(t, s, Alert{Title: "good", Message: "m", Kind: "k"})
	os.WriteFile(filepath.Join(s.Dir, "20260101T000000.000-badbadba.yaml"), []byte("title: [unterminated\n"), 0644)
	os.WriteFile(filepath.Join(s.Dir, "20260101T000000.000-emptyone.yaml"), []byte(""), 0644)
	os.WriteFile(filepath.Join(s.Dir, ".tmp-123.yaml"), []byte("title: half"), 0644)
	os.WriteFile(filepath.Join(s.Dir, "notes.txt"), []byte("ignore me"), 0644)

	all, err := s.Query(Query{})
	if err != nil {
		t.Fatalf("Query should not fail on corrupt records: %v", err)
	}
	if len(all) != 1 || all[0].ID != good.ID {
		t.Errorf("expected only the good record, got %v", ids(all))
	}
	if n, _ := s.Count(Query{}); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	if n, _ := s.Count(Query{Kinds: []string{"k"}}); n != 1 {
		t.Errorf("Count(kind) = %d, want 1", n)
	}

	removed, err := s.RemoveMatching(Query{})
	if err != nil || len(removed) != 1 {
		t.Errorf("RemoveMatching = %v, %v; want the good record only", ids(removed), err)
	}
}

func TestCountAgreesWithQueryOnTypeErrors(t *testing.T) {
	s := setupStore(t)
	mustInsert(t, s, Alert{Title: "good", Message: "m"})
	os.WriteFile(filepath.Join(s.Dir, "20260101T000000.000-badtime0.yaml"), []byte("title: x\nmessage: m\ncreated_at: notatime\n"), 0644)
	os.WriteFile(filepath.Join(s.Dir, "20260101T000000.000-badsound.yaml"), []byte("title: y\nmessage: m\nsound: maybe\n"), 0644)

	all, err := s.Query(Query{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	n, err := s.Count(Query{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != len(all) || n != 1 {
		t.Errorf("Count = %d, len(Query) = %d, want both 1", n, len(all))
	}
}

func TestRemoveCorruptRecord(t *testing.T) {
	s := setupStore(t)
	id := "20260101T000000.000-badbadba"
	path := filepath.Join(s.Dir, id+".yaml")
	os.WriteFile(path, []byte("{{{"), 0644)

	got, err := s.Remove(id)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got.ID != id || got.OnClick != "" {
		t.Errorf("expected id-only alert, got %+v", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt record should be deleted")
	}
}

func TestStorageUnavailable(t *testing.T) {
	s := setupStore(t)
	os.RemoveAll(s.Dir)
	os.WriteFile(s.Dir, []byte("not a dir"), 0644)

	if _, err := s.Query(Query{}); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Query: expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := s.Count(Query{}); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Count: expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := s.Insert(Alert{Title: "t", Message: "m"}, nil); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Insert: expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := Open(filepath.Join(s.Dir, "nested"), nil); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Open: expected ErrStorageUnavailable, got %v", err)
	}
}

func TestInsertLeavesNoTempFiles(t *testing.T) {
	s := setupStore(t)
	for i := 0; i < 5; i++ {
		mustInsert(t, s, Alert{Title: "t", Message: "m", DedupeKey: "K"})
	}
	entries, _ := os.ReadDir(s.Dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestScanAndQuarantine(t *testing.T) {
	s := setupStore(t)
	mustInsert(t, s, Alert{Title: "good", Message: "m"})
	bad := filepath.Join(s.Dir, "20260101T000000.000-badbadba.yaml")
	os.WriteFile(bad, []byte("{{{"), 0644)
	stale := filepath.Join(s.Dir, ".tmp-999.yaml")
	os.WriteFile(stale, []byte("title: x"), 0644)
	old := time.Now().Add(-time.Hour)
	os.Chtimes(stale, old, old)
	s.now = time.Now

	report, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if report.Records != 1 {
		t.Errorf("Records = %d, want 1", report.Records)
	}
	if len(report.Corrupt) != 1 || report.Corrupt[0].Path != bad {
		t.Errorf("Corrupt = %v", report.Corrupt)
	}
	if !errors.Is(report.Corrupt[0], ErrRecordCorrupt) {
		t.Error("corrupt entry should wrap ErrRecordCorrupt")
	}
	if len(report.StaleTemp) != 1 || report.StaleTemp[0] != stale {
		t.Errorf("StaleTemp = %v", report.StaleTemp)
	}

	qdir := filepath.Join(filepath.Dir(s.Dir), "quarantine")
	dest, err := Quarantine(bad, qdir)
	if err != nil {
		t.Fatalf("Quarantine: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("original should be gone")
	}
}

func TestGenerateIDSortsByTime(t *testing.T) {
	t1 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := GenerateID(t1)
	b := GenerateID(t1.Add(time.Millisecond))
	if !(a < b) {
		t.Errorf("expected %s < %s", a, b)
	}
	if !strings.HasPrefix(a, "20260102T030405.000-") {
		t.Errorf("unexpected format %s", a)
	}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateID(t1)
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
