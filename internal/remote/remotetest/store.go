// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package remotetest provides an in-memory remote file store for tests.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/autobrr/groupfs/internal/remote"
)

// Call records one RPC made against the Store.
type Call struct {
	Action string
	Scope  remote.Scope
	ID     string
}

// Store is a fake remote.Client backed by maps. Folder "" is the root.
type Store struct {
	mu sync.Mutex

	listings      map[string]*remote.Listing
	listErrs      map[string]error
	resolveErrs   map[string]error
	deleteResults map[string]*remote.DeleteResult
	deleteErrs    map[string]error
	quota         *remote.Quota
	quotaErr      error

	// OnResolve, when set, runs before every ResolveLink answer.
	OnResolve func(ctx context.Context, fileID string)

	calls   []Call
	deleted []string
}

// NewStore returns an empty store with a root folder.
func NewStore() *Store {
	return &Store{
		listings:      map[string]*remote.Listing{"": {}},
		listErrs:      make(map[string]error),
		resolveErrs:   make(map[string]error),
		deleteResults: make(map[string]*remote.DeleteResult),
		deleteErrs:    make(map[string]error),
	}
}

// AddFolder registers folderID as a child of parentID.
func (s *Store) AddFolder(parentID, folderID, name string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent := s.listingLocked(parentID)
	parent.Folders = append(parent.Folders, remote.FolderEntry{FolderID: folderID, FolderName: name})
	s.listingLocked(folderID)
	return s
}

// AddFile registers a file inside folderID.
func (s *Store) AddFile(folderID string, file remote.FileEntry) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.listingLocked(folderID)
	l.Files = append(l.Files, file)
	return s
}

// AddFiles registers n files named prefix-i inside folderID and returns their ids.
func (s *Store) AddFiles(folderID, prefix string, n int) []string {
	ids := make([]string, 0, n)
	for i := range n {
		id := fmt.Sprintf("%s-%d", prefix, i)
		s.AddFile(folderID, remote.FileEntry{FileID: id, FileName: id + ".txt", Size: int64(i + 1), ModifyTime: 1700000000 + int64(i)})
		ids = append(ids, id)
	}
	return ids
}

// FailList makes listing folderID fail with err.
func (s *Store) FailList(folderID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErrs[folderID] = err
}

// FailResolve makes resolving fileID fail with err.
func (s *Store) FailResolve(fileID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveErrs[fileID] = err
}

// SetDeleteResult overrides the delete response for fileID.
func (s *Store) SetDeleteResult(fileID string, res *remote.DeleteResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteResults[fileID] = res
}

// FailDelete makes deleting fileID fail with err.
func (s *Store) FailDelete(fileID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErrs[fileID] = err
}

// SetQuota sets the quota answer.
func (s *Store) SetQuota(q *remote.Quota, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = q
	s.quotaErr = err
}

// Calls returns a copy of all recorded calls.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount counts recorded calls for an action.
func (s *Store) CallCount(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Action == action {
			n++
		}
	}
	return n
}

// Deleted returns the ids removed by successful deletes.
func (s *Store) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.deleted))
	copy(out, s.deleted)
	return out
}

func (s *Store) listingLocked(folderID string) *remote.Listing {
	l, ok := s.listings[folderID]
	if !ok {
		l = &remote.Listing{}
		s.listings[folderID] = l
	}
	return l
}

func (s *Store) record(action string, scope remote.Scope, id string) {
	s.calls = append(s.calls, Call{Action: action, Scope: scope, ID: id})
}

func (s *Store) list(scope remote.Scope, action, folderID string) (*remote.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(action, scope, folderID)
	if err := s.listErrs[folderID]; err != nil {
		return nil, err
	}
	l, ok := s.listings[folderID]
	if !ok {
		return nil, remote.NewError(action, 1200, "folder not found", "")
	}
	out := &remote.Listing{
		Files:   append([]remote.FileEntry(nil), l.Files...),
		Folders: append([]remote.FolderEntry(nil), l.Folders...),
	}
	return out, nil
}

func (s *Store) ListRoot(_ context.Context, scope remote.Scope, _ int) (*remote.Listing, error) {
	return s.list(scope, "list_root", "")
}

func (s *Store) ListFolder(_ context.Context, scope remote.Scope, folderID string, _ int) (*remote.Listing, error) {
	return s.list(scope, "list_folder", folderID)
}

func (s *Store) ResolveLink(ctx context.Context, scope remote.Scope, fileID string) (string, error) {
	s.mu.Lock()
	s.record("resolve_link", scope, fileID)
	hook := s.OnResolve
	err := s.resolveErrs[fileID]
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, fileID)
	}
	if err != nil {
		return "", err
	}
	return "https://files.example/" + fileID, nil
}

func (s *Store) DeleteFile(_ context.Context, scope remote.Scope, fileID string) (*remote.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete_file", scope, fileID)
	if err := s.deleteErrs[fileID]; err != nil {
		return nil, err
	}
	res, ok := s.deleteResults[fileID]
	if !ok {
		res = remote.NewDeleteResult(0)
	}
	if res.Succeeded() {
		s.deleted = append(s.deleted, fileID)
	}
	return res, nil
}

func (s *Store) GetQuota(_ context.Context, scope remote.Scope) (*remote.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("get_quota", scope, "")
	if s.quotaErr != nil {
		return nil, s.quotaErr
	}
	if s.quota == nil {
		return &remote.Quota{}, nil
	}
	q := *s.quota
	return &q, nil
}
