// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package state keeps the .rewriterc.lock ledger.
//
// The ledger remembers, per file, which run-once (non-idempotent) rules have
// already been written so a later apply does not fire them again, and the
// hash of the content rewriterc last wrote.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/rule"
	"gitlab.com/tozd/go/errors"
)

const (
	// LockFileName is the ledger's file id relative to the workspace root
	LockFileName  = ".rewriterc.lock"
	SchemaVersion = "1.0.0"
)

// Store reads and writes file ids. *workspace.Workspace satisfies it.
type Store interface {
	ReadFile(ctx context.Context, id string) (string, error)
	WriteFileAtomic(ctx context.Context, id string, content []byte) error
}

// Lock is the on-disk shape of the ledger
type Lock struct {
	SchemaVersion string      `json:"schema_version"`
	LastUpdated   time.Time   `json:"last_updated"`
	LastBatch     string      `json:"last_batch,omitempty"`
	Files         []FileState `json:"files"`
}

// FileState is what the ledger knows about one file
type FileState struct {
	ID string `json:"id"`
	// ContentHash is the sha256 of the content rewriterc last wrote.
	ContentHash string    `json:"content_hash"`
	RunOnce     []string  `json:"run_once,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// 🔒 State is a loaded ledger
type State struct {
	store Store
	file  Lock
	byID  map[string]*FileState
	now   func() time.Time
}

func New(store Store) *State {
	return &State{
		store: store,
		file:  Lock{SchemaVersion: SchemaVersion},
		byID:  map[string]*FileState{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Load reads the ledger. A missing ledger leaves the state clean.
func (s *State) Load(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	data, err := s.store.ReadFile(ctx, LockFileName)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug().Msg("no lock file, starting clean")
		return nil
	}
	if err != nil {
		return errors.Errorf("reading lock file: %w", err)
	}

	var lock Lock
	if err := json.Unmarshal([]byte(data), &lock); err != nil {
		return errors.Errorf("parsing lock file: %w", err)
	}
	if lock.SchemaVersion != SchemaVersion {
		return errors.Errorf("lock file schema %q is not supported (want %s)", lock.SchemaVersion, SchemaVersion)
	}

	s.file = lock
	s.byID = make(map[string]*FileState, len(lock.Files))
	for i := range s.file.Files {
		s.byID[s.file.Files[i].ID] = &s.file.Files[i]
	}
	logger.Debug().Int("files", len(lock.Files)).Str("last_batch", lock.LastBatch).Msg("loaded lock file")
	return nil
}

// Save writes the ledger with files sorted by id
func (s *State) Save(ctx context.Context) error {
	files := make([]FileState, 0, len(s.byID))
	for _, f := range s.byID {
		files = append(files, *f)
	}
	slices.SortFunc(files, func(a, b FileState) int {
		return strings.Compare(a.ID, b.ID)
	})
	s.file.Files = files

	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return errors.Errorf("encoding lock file: %w", err)
	}
	if err := s.store.WriteFileAtomic(ctx, LockFileName, append(data, '\n')); err != nil {
		return errors.Errorf("writing lock file: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Int("files", len(files)).Msg("saved lock file")
	return nil
}

// File returns the recorded state of id
func (s *State) File(id string) (FileState, bool) {
	f, ok := s.byID[id]
	if !ok {
		return FileState{}, false
	}
	return *f, true
}

// Skips lists the run-once rules already written to id
func (s *State) Skips(id string) []string {
	if f, ok := s.byID[id]; ok {
		return slices.Clone(f.RunOnce)
	}
	return nil
}

// Drifted reports whether id was written by rewriterc and has changed since
func (s *State) Drifted(id, content string) bool {
	f, ok := s.byID[id]
	return ok && f.ContentHash != hashContent(content)
}

// 📥 Prepare marks each input with the run-once rules it must skip
func (s *State) Prepare(ctx context.Context, files []batch.File) {
	logger := zerolog.Ctx(ctx)
	for i := range files {
		files[i].Skip = s.Skips(files[i].ID)
		if s.Drifted(files[i].ID, files[i].Content) {
			logger.Debug().Str("file", files[i].ID).Msg("file changed since it was last written")
		}
	}
}

// 📝 Record notes the outcome of a committed batch for the written ids
func (s *State) Record(ctx context.Context, b *batch.Batch, set *rule.RuleSet, written []string) {
	now := s.now()
	results := make(map[string]*batch.FileResult, len(b.Results))
	for _, fr := range b.Results {
		results[fr.FileID] = fr
	}

	for _, id := range written {
		fr, ok := results[id]
		if !ok {
			continue
		}
		f, ok := s.byID[id]
		if !ok {
			f = &FileState{ID: id}
			s.byID[id] = f
		}
		f.ContentHash = hashContent(fr.Final)
		f.LastUpdated = now
		for _, c := range fr.Changes {
			r, ok := set.Rule(c.RuleID)
			if ok && !r.Idempotent && !slices.Contains(f.RunOnce, r.ID) {
				f.RunOnce = append(f.RunOnce, r.ID)
			}
		}
		slices.Sort(f.RunOnce)
	}

	s.file.LastUpdated = now
	s.file.LastBatch = b.ID
	zerolog.Ctx(ctx).Debug().Str("batch", b.ID).Int("files", len(written)).Msg("recorded batch")
}

// Forget drops what the ledger knows about the given ids
func (s *State) Forget(ids ...string) {
	for _, id := range ids {
		delete(s.byID, id)
	}
}

// Reset empties the ledger
func (s *State) Reset() {
	s.byID = map[string]*FileState{}
	s.file.LastBatch = ""
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
