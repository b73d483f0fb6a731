package rmapi

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dev-tams/newsdrop/internal/storage/remote"
)

type call struct {
	args  []string
	env   []string
	stdin string
}

type fakeRun struct {
	calls []call
	out   string
	err   error
}

func (f *fakeRun) run(_ context.Context, stdin io.Reader, env []string, _ string, args ...string) ([]byte, error) {
	in, _ := io.ReadAll(stdin)
	f.calls = append(f.calls, call{args: args, env: env, stdin: string(in)})
	return []byte(f.out), f.err
}

func TestParseListing(t *testing.T) {
	out := "[d]\tArchive\n[f]\tNew York Times 20240105\r\nsome banner\n[f]\tWashington Post 20240105\n[x]\tweird\n"
	got := ParseListing([]byte(out))
	want := []remote.Entry{
		{Name: "Archive"},
		{IsFile: true, Name: "New York Times 20240105"},
		{IsFile: true, Name: "Washington Post 20240105"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestListNotFound(t *testing.T) {
	f := &fakeRun{err: errors.New("rmapi ls: exit status 1: Error: directory doesn't exist")}
	s := newWithRunner("rmapi", Options{ConfigPath: "/tmp/rm.conf"}, f.run)

	_, err := s.List(context.Background(), "Newspapers")
	if !errors.Is(err, remote.ErrFolderNotFound) {
		t.Fatalf("expected ErrFolderNotFound, got %v", err)
	}
}

func TestListTransportError(t *testing.T) {
	f := &fakeRun{err: errors.New("rmapi ls: exit status 1: failed to fetch documents: 401")}
	s := newWithRunner("rmapi", Options{ConfigPath: "/tmp/rm.conf"}, f.run)

	_, err := s.List(context.Background(), "Newspapers")
	if err == nil || errors.Is(err, remote.ErrFolderNotFound) {
		t.Fatalf("expected a fatal transport error, got %v", err)
	}
}

func TestCommandsAndEndpointEnv(t *testing.T) {
	f := &fakeRun{}
	s := newWithRunner("rmapi", Options{
		ConfigPath: "/tmp/rm.conf",
		Endpoints:  Endpoints{AuthURL: "https://auth.example", DocumentURL: "https://doc.example"},
	}, f.run)
	ctx := context.Background()

	_ = s.Mkdir(ctx, "Newspapers")
	_ = s.Put(ctx, "/tmp/work/New York Times 20240105.pdf", "Newspapers")
	_ = s.Remove(ctx, "Newspapers/", "New York Times 20240101")

	want := [][]string{
		{"mkdir", "Newspapers"},
		{"put", "/tmp/work/New York Times 20240105.pdf", "Newspapers"},
		{"rm", "Newspapers/New York Times 20240101"},
	}
	if len(f.calls) != len(want) {
		t.Fatalf("unexpected calls: %+v", f.calls)
	}
	for i, w := range want {
		if strings.Join(f.calls[i].args, "|") != strings.Join(w, "|") {
			t.Fatalf("call[%d] = %v, want %v", i, f.calls[i].args, w)
		}
	}

	env := strings.Join(f.calls[0].env, " ")
	for _, kv := range []string{"RMAPI_CONFIG=/tmp/rm.conf", "RMAPI_AUTH=https://auth.example", "RMAPI_DOC=https://doc.example"} {
		if !strings.Contains(env, kv) {
			t.Fatalf("expected %s in child env, got %v", kv, f.calls[0].env)
		}
	}
	if os.Getenv("RMAPI_AUTH") == "https://auth.example" {
		t.Fatal("endpoint override leaked into the process environment")
	}
}

func TestAuthenticatedAndRegister(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "rmapi.conf")
	f := &fakeRun{}
	s := newWithRunner("rmapi", Options{ConfigPath: cfg}, f.run)
	ctx := context.Background()

	ok, err := s.Authenticated(ctx)
	if err != nil || ok {
		t.Fatalf("expected unauthenticated without config, got ok=%v err=%v", ok, err)
	}

	if err := os.WriteFile(cfg, []byte("devicetoken: abc\nusertoken: def\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Authenticated(ctx)
	if err != nil || !ok {
		t.Fatalf("expected authenticated, got ok=%v err=%v", ok, err)
	}

	if err := s.Register(ctx, " code1234 "); err != nil {
		t.Fatalf("Register: %v", err)
	}
	last := f.calls[len(f.calls)-1]
	if last.stdin != "code1234\n" {
		t.Fatalf("expected token on stdin, got %q", last.stdin)
	}
	if err := s.Register(ctx, "  "); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNewMissingBinary(t *testing.T) {
	orig := execLookPath
	defer func() { execLookPath = orig }()
	execLookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := New(Options{})
	if err == nil || !strings.Contains(err.Error(), "rmapi not found in PATH") {
		t.Fatalf("unexpected error: %v", err)
	}
}
