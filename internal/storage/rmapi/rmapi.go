// Package rmapi stores documents in the reMarkable cloud by driving the
// rmapi command line tool.
package rmapi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dev-tams/newsdrop/internal/storage/remote"
)

// ConnectURL is where users obtain a one-time device registration code.
const ConnectURL = "https://my.remarkable.com/device/desktop/connect"

var execLookPath = exec.LookPath

// Endpoints overrides the cloud hosts for the child process only.
type Endpoints struct {
	AuthURL     string
	DocumentURL string
}

func (e Endpoints) env() []string {
	var out []string
	if e.AuthURL != "" {
		out = append(out, "RMAPI_AUTH="+e.AuthURL)
	}
	if e.DocumentURL != "" {
		out = append(out, "RMAPI_DOC="+e.DocumentURL)
	}
	return out
}

type Options struct {
	// Binary is the rmapi executable; looked up in PATH when relative.
	Binary string
	// ConfigPath is the token file; defaults to $RMAPI_CONFIG, then
	// ~/.config/rmapi/rmapi.conf, then ~/.rmapi.
	ConfigPath string
	Endpoints  Endpoints
}

type runFunc func(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) ([]byte, error)

type Storage struct {
	bin        string
	configPath string
	env        []string
	run        runFunc
}

func New(opt Options) (*Storage, error) {
	bin := opt.Binary
	if bin == "" {
		bin = "rmapi"
	}
	resolved, err := execLookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("rmapi not found in PATH: %w", err)
	}
	return newWithRunner(resolved, opt, execRun), nil
}

func newWithRunner(bin string, opt Options, run runFunc) *Storage {
	cfgPath := opt.ConfigPath
	if cfgPath == "" {
		cfgPath = defaultConfigPath()
	}
	env := append([]string{"RMAPI_CONFIG=" + cfgPath}, opt.Endpoints.env()...)
	return &Storage{bin: bin, configPath: cfgPath, env: env, run: run}
}

func defaultConfigPath() string {
	if p := os.Getenv("RMAPI_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rmapi"
	}
	xdg := filepath.Join(home, ".config", "rmapi", "rmapi.conf")
	if _, err := os.Stat(xdg); err == nil {
		return xdg
	}
	return filepath.Join(home, ".rmapi")
}

func (s *Storage) Name() string { return "rmapi" }

func (s *Storage) exec(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	if stdin == nil {
		// never block on an interactive prompt
		stdin = strings.NewReader("")
	}
	return s.run(ctx, stdin, s.env, s.bin, args...)
}

func (s *Storage) List(ctx context.Context, folder string) ([]remote.Entry, error) {
	out, err := s.exec(ctx, nil, "ls", folder)
	if err != nil {
		if isNotFound(err.Error()) || isNotFound(string(out)) {
			return nil, fmt.Errorf("%w: %s", remote.ErrFolderNotFound, folder)
		}
		return nil, err
	}
	entries := ParseListing(out)
	if len(entries) == 0 && isNotFound(string(out)) {
		return nil, fmt.Errorf("%w: %s", remote.ErrFolderNotFound, folder)
	}
	return entries, nil
}

func (s *Storage) Mkdir(ctx context.Context, folder string) error {
	_, err := s.exec(ctx, nil, "mkdir", folder)
	return err
}

func (s *Storage) Put(ctx context.Context, localPath, folder string) error {
	_, err := s.exec(ctx, nil, "put", localPath, folder)
	return err
}

func (s *Storage) Remove(ctx context.Context, folder, name string) error {
	_, err := s.exec(ctx, nil, "rm", strings.TrimRight(folder, "/")+"/"+name)
	return err
}

// Authenticated reports whether a device token has been stored.
func (s *Storage) Authenticated(_ context.Context) (bool, error) {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read rmapi config: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(k) == "devicetoken" && strings.TrimSpace(v) != "" {
			return true, nil
		}
	}
	return false, nil
}

// Register answers rmapi's one-time code prompt with token.
func (s *Storage) Register(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("rmapi: empty device token")
	}
	if _, err := s.exec(ctx, strings.NewReader(strings.TrimSpace(token)+"\n"), "ls", "/"); err != nil {
		return fmt.Errorf("rmapi register: %w", err)
	}
	return nil
}

// ParseListing decodes "[f]\tname" and "[d]\tname" lines and ignores the rest.
func ParseListing(out []byte) []remote.Entry {
	var entries []remote.Entry
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		kind, name, ok := strings.Cut(strings.TrimRight(sc.Text(), "\r"), "\t")
		if !ok || name == "" {
			continue
		}
		switch strings.TrimSpace(kind) {
		case "[f]":
			entries = append(entries, remote.Entry{IsFile: true, Name: name})
		case "[d]":
			entries = append(entries, remote.Entry{Name: name})
		}
	}
	return entries
}

func isNotFound(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "doesn't exist") || strings.Contains(m, "does not exist") || strings.Contains(m, "not found")
}

func execRun(ctx context.Context, stdin io.Reader, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("rmapi %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
