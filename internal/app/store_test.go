package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dev-tams/newsdrop/internal/storage"
	"github.com/dev-tams/newsdrop/internal/storage/remote"
)

// fakeStore keeps one folder tree in memory and records mutating calls.
type fakeStore struct {
	folders map[string][]storage.Entry
	calls   []string
	failOn  map[string]error
	listErr error
}

func newFakeStore(folder string, names ...string) *fakeStore {
	s := &fakeStore{folders: map[string][]storage.Entry{}, failOn: map[string]error{}}
	if folder != "" {
		s.folders[folder] = nil
		for _, n := range names {
			s.folders[folder] = append(s.folders[folder], storage.Entry{IsFile: true, Name: n})
		}
	}
	return s
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) List(_ context.Context, folder string) ([]storage.Entry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	entries, ok := s.folders[folder]
	if !ok {
		return nil, fmt.Errorf("ls %s: %w", folder, storage.ErrFolderNotFound)
	}
	return append([]storage.Entry(nil), entries...), nil
}

func (s *fakeStore) Mkdir(_ context.Context, folder string) error {
	s.calls = append(s.calls, "mkdir "+folder)
	if err := s.failOn["mkdir"]; err != nil {
		return err
	}
	s.folders[folder] = nil
	return nil
}

func (s *fakeStore) Put(_ context.Context, localPath, folder string) error {
	name := remote.DocumentName(localPath)
	s.calls = append(s.calls, "put "+name)
	if err := s.failOn["put "+name]; err != nil {
		return err
	}
	s.folders[folder] = append(s.folders[folder], storage.Entry{IsFile: true, Name: name})
	return nil
}

func (s *fakeStore) Remove(_ context.Context, folder, name string) error {
	s.calls = append(s.calls, "rm "+name)
	if err := s.failOn["rm "+name]; err != nil {
		return err
	}
	entries := s.folders[folder]
	for i, e := range entries {
		if e.Name == name {
			s.folders[folder] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return errors.New("no such document: " + name)
}

func (s *fakeStore) names(folder string) []string {
	var out []string
	for _, e := range s.folders[folder] {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

// authStore adds device registration to fakeStore.
type authStore struct {
	*fakeStore
	authed      bool
	acceptToken string
	registered  []string
}

func (s *authStore) Authenticated(context.Context) (bool, error) { return s.authed, nil }

func (s *authStore) Register(_ context.Context, token string) error {
	s.registered = append(s.registered, token)
	if token == s.acceptToken {
		s.authed = true
	}
	return nil
}
