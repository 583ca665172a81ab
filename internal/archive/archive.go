// Package archive stores delivery directories on disk, one per persona
// version, under <root>/<slug>/v<N>/. A version directory is published by
// an atomic rename, so readers never see a half-written snapshot.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/personaforge/personaforge/internal/bundle"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

const (
	versionPrefix = "v"
	// tempPrefix marks in-progress snapshots; listings skip them.
	tempPrefix = ".tmp-"
)

// Archive is a disk-backed snapshot store. It holds no locks: callers
// serialize writers of the same slug.
type Archive struct {
	root   string
	logger *zap.Logger
}

// Snapshot is one published version read back from disk.
type Snapshot struct {
	Dir       string
	Manifest  bundle.Manifest
	Artifacts persona.ArtifactSet
}

// Summary describes one slug in the archive.
type Summary struct {
	Slug          string         `json:"slug"`
	Name          string         `json:"name"`
	Versions      int            `json:"versions"`
	LatestVersion int            `json:"latest_version"`
	LatestStatus  persona.Status `json:"latest_status"`
}

// New returns an Archive rooted at root. A nil logger discards output.
func New(root string, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{root: root, logger: logger.Named("archive")}
}

// Root returns the archive's root directory.
func (a *Archive) Root() string {
	return a.root
}

// Dir returns the directory of a version.
func (a *Archive) Dir(slug string, version int) string {
	return filepath.Join(a.root, slug, versionPrefix+strconv.Itoa(version))
}

// MaxVersion returns the highest published version of slug, or 0.
func (a *Archive) MaxVersion(slug string) (int, error) {
	versions, err := a.versions(slug)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

// Publish writes files into a fresh version directory. It fails with a
// VersionConflictError if the version already exists and with a
// StorageWriteError on any I/O failure; nothing is left behind on failure.
func (a *Archive) Publish(slug string, version int, files []bundle.File) error {
	target := a.Dir(slug, version)
	fail := func(err error) error {
		return &apperrors.StorageWriteError{Backend: apperrors.BackendDisk, Slug: slug, Version: version, Err: err}
	}

	if _, err := os.Lstat(target); err == nil {
		return &apperrors.VersionConflictError{Slug: slug, Version: version}
	} else if !os.IsNotExist(err) {
		return fail(fmt.Errorf("checking %s: %w", target, err))
	}

	slugDir := filepath.Dir(target)
	if err := os.MkdirAll(slugDir, 0o755); err != nil {
		return fail(fmt.Errorf("creating slug directory: %w", err))
	}

	tmp, err := os.MkdirTemp(slugDir, tempPrefix+filepath.Base(target)+"-")
	if err != nil {
		return fail(fmt.Errorf("creating temp directory: %w", err))
	}
	published := false
	defer func() {
		if !published {
			if rmErr := os.RemoveAll(tmp); rmErr != nil {
				a.logger.Warn("removing temp snapshot", zap.String("dir", tmp), zap.Error(rmErr))
			}
		}
	}()

	for _, f := range files {
		if err := writeFileSync(filepath.Join(tmp, f.Name), f.Data); err != nil {
			return fail(err)
		}
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return fail(fmt.Errorf("setting snapshot permissions: %w", err))
	}

	if err := os.Rename(tmp, target); err != nil {
		if errors.Is(err, syscall.EEXIST) || errors.Is(err, syscall.ENOTEMPTY) {
			return &apperrors.VersionConflictError{Slug: slug, Version: version}
		}
		return fail(fmt.Errorf("publishing snapshot: %w", err))
	}
	published = true

	a.logger.Debug("published snapshot",
		zap.String("slug", slug),
		zap.Int("version", version),
		zap.Int("files", len(files)),
	)
	return nil
}

// UpdateManifest atomically replaces the manifest of a published version.
func (a *Archive) UpdateManifest(m bundle.Manifest) error {
	slug, version := m.Record.Slug, m.Record.Version
	fail := func(err error) error {
		return &apperrors.StorageWriteError{Backend: apperrors.BackendDisk, Slug: slug, Version: version, Err: err}
	}

	dir := a.Dir(slug, version)
	if _, err := os.Stat(dir); err != nil {
		return fail(fmt.Errorf("snapshot missing: %w", err))
	}

	data, err := bundle.EncodeManifest(m)
	if err != nil {
		return fail(err)
	}

	path := filepath.Join(dir, bundle.ManifestFile)
	tmpPath := path + ".tmp"
	if err := writeFileSync(tmpPath, data); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fail(fmt.Errorf("renaming manifest: %w", err))
	}
	return nil
}

// Load reads a published version.
func (a *Archive) Load(slug string, version int) (*Snapshot, error) {
	dir := a.Dir(slug, version)
	data, err := os.ReadFile(filepath.Join(dir, bundle.ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &apperrors.NotFoundError{Slug: slug, Version: version}
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := bundle.DecodeManifest(data)
	if err != nil {
		return nil, err
	}

	set := make(persona.ArtifactSet, len(m.Artifacts))
	for _, entry := range m.Artifacts {
		payload, err := os.ReadFile(filepath.Join(dir, entry.File))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.File, err)
		}
		art := persona.Artifact{ID: entry.ID, Type: entry.Type, CreatedAt: m.Record.CreatedAt}
		if entry.Type.Structured() {
			if !json.Valid(payload) {
				return nil, fmt.Errorf("%s holds invalid JSON", entry.File)
			}
			art.JSON = payload
		} else {
			art.Text = string(payload)
		}
		set[entry.Type] = art
	}

	return &Snapshot{Dir: dir, Manifest: m, Artifacts: set}, nil
}

// Latest reads the highest published version of slug.
func (a *Archive) Latest(slug string) (*Snapshot, error) {
	v, err := a.MaxVersion(slug)
	if err != nil {
		return nil, err
	}
	if v == 0 {
		return nil, &apperrors.NotFoundError{Slug: slug}
	}
	return a.Load(slug, v)
}

// Versions returns the records of every published version in ascending
// version order. An unknown slug yields an empty list.
func (a *Archive) Versions(slug string) ([]persona.Record, error) {
	versions, err := a.versions(slug)
	if err != nil {
		return nil, err
	}

	records := make([]persona.Record, 0, len(versions))
	for _, v := range versions {
		snap, err := a.Load(slug, v)
		if err != nil {
			return nil, err
		}
		records = append(records, snap.Manifest.Record)
	}
	return records, nil
}

// Slugs summarizes every slug with at least one published version, sorted by slug.
func (a *Archive) Slugs() ([]Summary, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("reading archive root: %w", err)
	}

	out := []Summary{}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		versions, err := a.versions(e.Name())
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			continue
		}
		latest, err := a.Load(e.Name(), versions[len(versions)-1])
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{
			Slug:          e.Name(),
			Name:          latest.Manifest.Record.Name,
			Versions:      len(versions),
			LatestVersion: latest.Manifest.Record.Version,
			LatestStatus:  latest.Manifest.Record.Status,
		})
	}
	return out, nil
}

// versions lists published version numbers of slug in ascending order.
func (a *Archive) versions(slug string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(a.root, slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", slug, err)
	}

	var out []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, ok := parseVersion(e.Name())
		if ok {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out, nil
}

func parseVersion(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, versionPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
