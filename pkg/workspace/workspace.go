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

package workspace

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/rewriterc/pkg/batch"
	"gitlab.com/tozd/go/errors"
)

// BackupSuffix is appended to a file id to name its backup
const BackupSuffix = ".bak"

// vendoredDirs are never walked
var vendoredDirs = []string{
	"**/.git/**",
	"**/node_modules/**",
}

// DefaultExclude is always applied on top of the configured excludes
var DefaultExclude = append(slices.Clone(vendoredDirs), "**/*"+BackupSuffix)

// 💾 Workspace maps file ids (slash separated, relative to a root) to files on
// disk. It is the only part of rewriterc that touches storage.
type Workspace struct {
	root    string
	include []string
	exclude []string
	ignored map[string]bool
}

// 🏭 New creates a workspace rooted at root. An empty include selects every file.
func New(root string, include, exclude []string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("resolving root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Errorf("opening root: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("root %s is not a directory", abs)
	}

	for _, glob := range slices.Concat(include, exclude) {
		if !doublestar.ValidatePattern(glob) {
			return nil, errors.Errorf("invalid glob %q", glob)
		}
	}
	if len(include) == 0 {
		include = []string{"**"}
	}
	return &Workspace{
		root:    abs,
		include: include,
		exclude: slices.Concat(DefaultExclude, exclude),
		ignored: map[string]bool{},
	}, nil
}

// Ignore drops a file from discovery when path lies under the root. Paths
// outside the root are ignored silently.
func (w *Workspace) Ignore(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return
	}
	w.ignored[filepath.ToSlash(rel)] = true
}

func (w *Workspace) Root() string {
	return w.root
}

// 🔒 path returns the absolute path of a file id, refusing ids that escape the root
func (w *Workspace) path(id string) (string, error) {
	local := filepath.FromSlash(id)
	if !filepath.IsLocal(local) {
		return "", errors.Errorf("file id %q is outside the workspace", id)
	}
	return filepath.Join(w.root, local), nil
}

// Selects reports whether id passes the include and exclude globs
func (w *Workspace) Selects(id string) bool {
	if w.ignored[id] {
		return false
	}
	for _, glob := range w.exclude {
		if ok, _ := doublestar.Match(glob, id); ok {
			return false
		}
	}
	for _, glob := range w.include {
		if ok, _ := doublestar.Match(glob, id); ok {
			return true
		}
	}
	return false
}

// 🔍 Discover lists the ids of every selected regular file, sorted
func (w *Workspace) Discover(ctx context.Context) ([]string, error) {
	fsys := os.DirFS(w.root)
	var ids []string
	for _, glob := range w.include {
		err := doublestar.GlobWalk(fsys, glob, func(id string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if w.Selects(id) {
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Errorf("walking %q: %w", glob, err)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	zerolog.Ctx(ctx).Debug().Str("root", w.root).Int("files", len(ids)).Msg("discovered files")
	return ids, nil
}

// ReadFile returns the content of one file
func (w *Workspace) ReadFile(ctx context.Context, id string) (string, error) {
	p, err := w.path(id)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return "", errors.Errorf("reading file: %w", err)
	}
	return string(content), nil
}

// 📥 Load reads the given ids into batch inputs, preserving order
func (w *Workspace) Load(ctx context.Context, ids []string) ([]batch.File, error) {
	files := make([]batch.File, 0, len(ids))
	for _, id := range ids {
		content, err := w.ReadFile(ctx, id)
		if err != nil {
			return nil, errors.Errorf("loading %q: %w", id, err)
		}
		files = append(files, batch.File{ID: id, Content: content})
	}
	return files, nil
}

// WriteFileAtomic replaces a file through a temp file in the same directory
// and a rename. The previous permissions are kept.
func (w *Workspace) WriteFileAtomic(ctx context.Context, id string, content []byte) error {
	p, err := w.path(id)
	if err != nil {
		return err
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(p); err == nil {
		mode = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return errors.Errorf("checking file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".rewriterc-*")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		cleanup()
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		cleanup()
		return errors.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		cleanup()
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// BackupFile copies a file next to itself with BackupSuffix. An existing
// backup is left alone so it keeps the content from before the first write.
func (w *Workspace) BackupFile(ctx context.Context, id string) error {
	p, err := w.path(id)
	if err != nil {
		return err
	}
	backup := p + BackupSuffix
	if _, err := os.Stat(backup); err == nil {
		zerolog.Ctx(ctx).Debug().Str("file", id).Msg("backup already present, keeping it")
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return errors.Errorf("checking backup existence: %w", err)
	}
	if err := copyFile(p, backup); err != nil {
		return errors.Errorf("creating backup: %w", err)
	}
	return nil
}

// RestoreFile puts a backup back in place and removes it
func (w *Workspace) RestoreFile(ctx context.Context, id string) error {
	p, err := w.path(id)
	if err != nil {
		return err
	}
	backup := p + BackupSuffix

	if _, err := os.Stat(backup); errors.Is(err, fs.ErrNotExist) {
		return errors.Errorf("backup file does not exist")
	} else if err != nil {
		return errors.Errorf("checking backup existence: %w", err)
	}

	if err := copyFile(backup, p); err != nil {
		return errors.Errorf("restoring from backup: %w", err)
	}
	if err := os.Remove(backup); err != nil {
		return errors.Errorf("removing backup: %w", err)
	}
	return nil
}

// 🔍 Backups lists the ids that have a backup next to them, sorted. Backups
// whose original no longer exists are listed too.
func (w *Workspace) Backups(ctx context.Context) ([]string, error) {
	var ids []string
	err := doublestar.GlobWalk(os.DirFS(w.root), "**/*"+BackupSuffix, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, glob := range vendoredDirs {
			if ok, _ := doublestar.Match(glob, p); ok {
				return nil
			}
		}
		ids = append(ids, strings.TrimSuffix(p, BackupSuffix))
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking backups: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// RemoveBackup deletes the backup of id
func (w *Workspace) RemoveBackup(ctx context.Context, id string) error {
	p, err := w.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p + BackupSuffix); err != nil {
		return errors.Errorf("removing backup: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("file", id).Msg("backup removed")
	return nil
}

// 🔧 CommitOptions tune Commit
type CommitOptions struct {
	// Backup keeps a copy of every file before it is overwritten.
	Backup bool
}

// 💾 Commit persists every committed, changed result of a batch and returns
// the ids written.
//
// Before anything is written, each file is checked against the content the
// batch started from; if any file changed on disk nothing is written.
func (w *Workspace) Commit(ctx context.Context, b *batch.Batch, opts CommitOptions) ([]string, error) {
	logger := zerolog.Ctx(ctx).With().Str("batch", b.ID).Logger()

	var pending []*batch.FileResult
	for _, r := range b.Results {
		if r.Committed && r.Changed() {
			pending = append(pending, r)
		}
	}

	for _, r := range pending {
		current, err := w.ReadFile(ctx, r.FileID)
		if err != nil {
			return nil, errors.Errorf("checking %q before commit: %w", r.FileID, err)
		}
		if current != r.Original {
			return nil, errors.Errorf("file %q changed on disk since it was read; nothing was written", r.FileID)
		}
	}

	written := make([]string, 0, len(pending))
	for _, r := range pending {
		if opts.Backup {
			if err := w.BackupFile(ctx, r.FileID); err != nil {
				return written, errors.Errorf("backing up %q: %w", r.FileID, err)
			}
		}
		if err := w.WriteFileAtomic(ctx, r.FileID, []byte(r.Final)); err != nil {
			return written, errors.Errorf("writing %q: %w", r.FileID, err)
		}
		written = append(written, r.FileID)
		logger.Debug().Str("file", r.FileID).Int("changes", len(r.Changes)).Bool("backup", opts.Backup).Msg("file written")
	}
	return written, nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source file: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return errors.Errorf("reading source mode: %w", err)
	}

	destination, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Errorf("creating destination file: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return errors.Errorf("copying file: %w", err)
	}
	return nil
}
