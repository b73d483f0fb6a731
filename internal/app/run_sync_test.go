package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dev-tams/newsdrop/internal/config"
	"github.com/dev-tams/newsdrop/internal/notify"
	"github.com/dev-tams/newsdrop/internal/pdfdoc/pdftest"
)

const testDate = "20240106"

const testManifest = `{"sections": {"pubdate": "20240106", "section": [
  {"name": "A", "pages": {"page": [
    {"page_name": "A01", "hires_pdf": "A01.pdf", "thumb_300": "A01.jpg"},
    {"page_name": "A02", "hires_pdf": "A02.pdf", "thumb_300": "A02.jpg"}
  ]}}
]}}`

// newsServer serves the NYT front page and the WaPo tablet edition for testDate.
type newsServer struct {
	*httptest.Server
	hits   atomic.Int32
	noWaPo bool
	noNYT  bool
}

func startNewsServer(t *testing.T) *newsServer {
	t.Helper()
	s := &newsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		switch {
		case r.URL.Path == "/images/2024/01/06/nytfrontpage/scan.pdf" && !s.noNYT:
			_, _ = w.Write(pdftest.Document(1))
		case r.URL.Path == "/20240106/tablet_20240106.json" && !s.noWaPo:
			_, _ = w.Write([]byte(testManifest))
		case strings.HasPrefix(r.URL.Path, "/20240106/A0") && !s.noWaPo:
			_, _ = w.Write(pdftest.Document(1))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func testConfig(t *testing.T, srv *newsServer, maxDays int, sources ...string) *config.Config {
	t.Helper()
	return &config.Config{
		Version:    1,
		Folder:     "Newspapers",
		Sources:    sources,
		MaxDays:    maxDays,
		ScratchDir: t.TempDir(),
		Store:      config.StoreConfig{Type: config.StoreLocal, Local: config.LocalConfig{Path: t.TempDir()}},
		HTTP:       config.HTTPConfig{UserAgent: "newsdrop-test"},
		NYT:        config.NYTConfig{Hosts: []string{srv.URL}, Names: []string{"scan.pdf"}},
		WaPo:       config.WaPoConfig{BaseURL: srv.URL},
	}
}

func syncWith(t *testing.T, cfg *config.Config, st *fakeStore, opts SyncOptions) (SyncResult, string) {
	t.Helper()
	var out bytes.Buffer
	opts.Out = &out
	if opts.Date == "" {
		opts.Date = testDate
	}
	res, err := runSync(context.Background(), cfg, st, nil, opts)
	if err != nil {
		t.Fatalf("runSync: %v\noutput:\n%s", err, out.String())
	}
	return res, out.String()
}

func TestRunSyncEndToEndRetention(t *testing.T) {
	srv := startNewsServer(t)
	cfg := testConfig(t, srv, 3, "nyt")
	st := newFakeStore("Newspapers",
		"New York Times 20240101", "New York Times 20240102", "New York Times 20240103",
		"New York Times 20240104", "New York Times 20240105")

	res, _ := syncWith(t, cfg, st, SyncOptions{})

	want := "put New York Times 20240106,rm New York Times 20240101,rm New York Times 20240102"
	if got := strings.Join(st.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
	if strings.Join(res.Plan.Retention.DatesToDelete, ",") != "20240101,20240102" {
		t.Fatalf("unexpected dates to delete: %v", res.Plan.Retention.DatesToDelete)
	}
}

func TestRunSyncIsIdempotent(t *testing.T) {
	srv := startNewsServer(t)
	cfg := testConfig(t, srv, 5, "nyt", "wapo")
	st := newFakeStore("Newspapers")

	first, _ := syncWith(t, cfg, st, SyncOptions{})
	if len(first.Uploaded) != 2 {
		t.Fatalf("first run should upload both editions, got %v", first.Uploaded)
	}
	hits := srv.hits.Load()
	calls := len(st.calls)

	second, out := syncWith(t, cfg, st, SyncOptions{})
	if len(second.Uploaded) != 0 || len(st.calls) != calls {
		t.Fatalf("second run mutated the store: uploaded=%v calls=%v", second.Uploaded, st.calls[calls:])
	}
	if srv.hits.Load() != hits {
		t.Fatalf("second run fetched present editions again")
	}
	if len(second.Skipped) != 2 || !strings.Contains(out, "reason=present") {
		t.Fatalf("expected both sources skipped as present, got %v\n%s", second.Skipped, out)
	}
	if len(first.Plan.Retention.Items) != 0 || len(second.Plan.Retention.Items) != 0 {
		t.Fatalf("unexpected retention decisions")
	}
}

func TestRunSyncDryRunMatchesRealSelections(t *testing.T) {
	srv := startNewsServer(t)
	names := []string{"Washington Post 20240101", "Washington Post 20240102", "New York Times 20240102"}

	dryStore := newFakeStore("Newspapers", names...)
	dry, out := syncWith(t, testConfig(t, srv, 1, "nyt", "wapo"), dryStore, SyncOptions{DryRun: true})
	if len(dryStore.calls) != 0 {
		t.Fatalf("dry-run made mutating calls: %v", dryStore.calls)
	}
	if !strings.Contains(out, "dry-run: would upload") || !strings.Contains(out, "dry-run: would delete") {
		t.Fatalf("expected dry-run report, got:\n%s", out)
	}

	realStore := newFakeStore("Newspapers", names...)
	real, _ := syncWith(t, testConfig(t, srv, 1, "nyt", "wapo"), realStore, SyncOptions{})

	if a, b := editionNames(dry.Plan), editionNames(real.Plan); a != b {
		t.Fatalf("upload selections differ: dry=%s real=%s", a, b)
	}
	if a, b := itemNames(dry.Plan.Retention.Items), itemNames(real.Plan.Retention.Items); a != b {
		t.Fatalf("deletion selections differ: dry=%s real=%s", a, b)
	}
	if len(real.Deleted) != 1 || real.Deleted[0] != "Washington Post 20240101" {
		t.Fatalf("expected only the oldest date deleted, got %v", real.Deleted)
	}
}

func editionNames(p RunPlan) string {
	names := make([]string, len(p.Uploads))
	for i, u := range p.Uploads {
		names[i] = u.Name()
	}
	return strings.Join(names, "|")
}

func TestRunSyncSkipsFailingSource(t *testing.T) {
	srv := startNewsServer(t)
	srv.noWaPo = true
	st := newFakeStore("Newspapers")

	res, out := syncWith(t, testConfig(t, srv, -1, "nyt", "wapo"), st, SyncOptions{})

	if len(res.FailedSources) != 1 || res.FailedSources[0] != "wapo" {
		t.Fatalf("expected wapo to fail, got %v", res.FailedSources)
	}
	if got := strings.Join(st.calls, ","); got != "put New York Times 20240106" {
		t.Fatalf("unexpected calls: %s", got)
	}
	if !strings.Contains(out, "fetch failed: source=wapo") {
		t.Fatalf("expected fetch failure line, got:\n%s", out)
	}
}

func TestRunSyncSkipFetchStillAppliesRetention(t *testing.T) {
	srv := startNewsServer(t)
	st := newFakeStore("Newspapers", "New York Times 20240101", "New York Times 20240102")

	res, _ := syncWith(t, testConfig(t, srv, 1, "nyt"), st, SyncOptions{SkipFetch: true})

	if srv.hits.Load() != 0 {
		t.Fatalf("skip-fetch must not download")
	}
	if got := strings.Join(st.calls, ","); got != "rm New York Times 20240101" {
		t.Fatalf("unexpected calls: %s", got)
	}
	if len(res.Plan.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %v", res.Plan.Candidates)
	}
}

func TestRunSyncRetentionCoversUnselectedSources(t *testing.T) {
	srv := startNewsServer(t)
	st := newFakeStore("Newspapers",
		"Washington Post 20240101", "Washington Post 20240102", "Washington Post 20240103",
		"New York Times 20240105")

	res, _ := syncWith(t, testConfig(t, srv, 1, "nyt"), st, SyncOptions{})

	want := "put New York Times 20240106," +
		"rm Washington Post 20240101,rm Washington Post 20240102,rm Washington Post 20240103"
	if got := strings.Join(st.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
	if got := strings.Join(res.Plan.Inventory.Prefixes(), ","); got != "New York Times,Washington Post" {
		t.Fatalf("inventory prefixes = %s", got)
	}
	if len(res.Plan.Candidates) != 1 || res.Plan.Candidates[0].Prefix != "New York Times" {
		t.Fatalf("only the selected source may be fetched, got %v", res.Plan.Candidates)
	}
}

func TestRunSyncUploadFailureAborts(t *testing.T) {
	srv := startNewsServer(t)
	st := newFakeStore("Newspapers", "New York Times 20240101", "New York Times 20240102")
	st.failOn["put New York Times 20240106"] = errors.New("network down")

	_, err := runSync(context.Background(), testConfig(t, srv, 1, "nyt"), st, nil, SyncOptions{Date: testDate, Out: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "network down") {
		t.Fatalf("expected upload failure, got %v", err)
	}
	for _, c := range st.calls {
		if strings.HasPrefix(c, "rm ") {
			t.Fatalf("deletions must not run after a failed upload: %v", st.calls)
		}
	}
}

func TestRunSyncRejectsBadDate(t *testing.T) {
	srv := startNewsServer(t)
	_, err := runSync(context.Background(), testConfig(t, srv, 1, "nyt"), newFakeStore("Newspapers"), nil,
		SyncOptions{Date: "2024-01-06", Out: &bytes.Buffer{}})
	if err == nil {
		t.Fatal("expected invalid date error")
	}
}

func TestRunSyncWithLocalStoreAndWebhook(t *testing.T) {
	srv := startNewsServer(t)

	events := make(chan notify.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev notify.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		events <- ev
	}))
	defer hook.Close()

	cfg := testConfig(t, srv, 1, "nyt", "wapo")
	cfg.Notifications = []config.NotificationConfig{{
		Type:   "webhook",
		On:     []string{"both"},
		Config: config.NotificationDetails{URL: hook.URL},
	}}

	res, err := RunSyncWithResult(context.Background(), cfg, SyncOptions{Date: testDate, Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("RunSyncWithResult: %v", err)
	}
	if len(res.Uploaded) != 2 {
		t.Fatalf("expected two uploads, got %v", res.Uploaded)
	}

	for _, name := range []string{"New York Times 20240106.pdf", "Washington Post 20240106.pdf"} {
		if _, err := os.Stat(filepath.Join(cfg.Store.Local.Path, "Newspapers", name)); err != nil {
			t.Fatalf("expected %s in local store: %v", name, err)
		}
	}

	ev := <-events
	if ev.Status != notify.StatusSuccess || len(ev.Uploaded) != 2 || ev.Date != testDate {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRunSyncAllSourcesFailingIsNotFatal(t *testing.T) {
	srv := startNewsServer(t)
	srv.noNYT = true
	srv.noWaPo = true
	st := newFakeStore("Newspapers")

	res, _ := syncWith(t, testConfig(t, srv, 1, "nyt", "wapo"), st, SyncOptions{})

	if len(res.FailedSources) != 2 || len(st.calls) != 0 {
		t.Fatalf("expected two failed sources and no calls, got %v %v", res.FailedSources, st.calls)
	}
}

func TestRunSyncReportsPartialRuns(t *testing.T) {
	srv := startNewsServer(t)
	srv.noWaPo = true

	events := make(chan notify.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev notify.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		events <- ev
	}))
	defer hook.Close()

	cfg := testConfig(t, srv, 1, "nyt", "wapo")
	cfg.Notifications = []config.NotificationConfig{{
		Type:   "webhook",
		On:     []string{"failure"},
		Config: config.NotificationDetails{URL: hook.URL},
	}}

	if err := RunSync(context.Background(), cfg, SyncOptions{Date: testDate, Out: &bytes.Buffer{}}); err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	ev := <-events
	if ev.Status != notify.StatusPartial || len(ev.FailedSources) != 1 || ev.FailedSources[0] != "wapo" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
