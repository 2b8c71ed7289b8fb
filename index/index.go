// Package index keeps a persistent catalog of the models available on disk:
// checkpoints, loras, embeddings, VAEs, and upscale models. The graph
// builder resolves card selections against it and the completion consumer
// searches it for suggestions.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.mills.io/prologic/bitcask"

	"github.com/sandmoen/comfyforge/graphapi"
	"github.com/sandmoen/comfyforge/logger"
)

// ErrModelNotFound reports an expected miss: the reference does not match
// any indexed model.
var ErrModelNotFound = errors.New("model not found")

// Index is the lookup surface consumers depend on. LocalIndex implements it;
// the graph builder only needs the ModelResolver part.
type Index interface {
	graphapi.ModelResolver
	Lookup(ref graphapi.ModelReference) (ModelFile, error)
	Search(modelType graphapi.ModelType, prefix string) ([]ModelFile, error)
	Scan() (int, error)
}

var _ Index = (*LocalIndex)(nil)

// ModelFile is one indexed model: where it lives on disk and the name the
// backend knows it by.
type ModelFile struct {
	Type      graphapi.ModelType `json:"type"`
	Name      string             `json:"name"`
	File      string             `json:"file"`
	Path      string             `json:"path"`
	SHA256    string             `json:"sha256"`
	Size      int64              `json:"size"`
	IndexedAt time.Time          `json:"indexed_at"`
}

// Dirs maps model types to the directories scanned for them.
type Dirs map[graphapi.ModelType][]string

// LocalIndex stores model records in a bitcask database keyed by
// "type:name". It implements graphapi.ModelResolver.
type LocalIndex struct {
	db   *bitcask.Bitcask
	dirs Dirs
}

// Open opens or creates the index database at path.
func Open(path string, dirs Dirs) (*LocalIndex, error) {
	db, err := bitcask.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &LocalIndex{db: db, dirs: dirs}, nil
}

func (ix *LocalIndex) Close() error {
	return ix.db.Close()
}

func indexKey(t graphapi.ModelType, name string) []byte {
	return []byte(string(t) + ":" + strings.ToLower(name))
}

var modelExtensions = map[string]bool{
	".safetensors": true,
	".ckpt":        true,
	".pt":          true,
	".pth":         true,
}

// Scan walks the configured directories and refreshes the stored records.
// Files whose path and size are unchanged keep their existing record, so
// rescans skip rehashing. Returns the number of files indexed or kept.
func (ix *LocalIndex) Scan() (int, error) {
	count := 0
	for modelType, dirs := range ix.dirs {
		for _, dir := range dirs {
			n, err := ix.scanDir(modelType, dir)
			count += n
			if err != nil {
				return count, err
			}
		}
	}
	if err := ix.db.Merge(); err != nil {
		return count, fmt.Errorf("merge index: %w", err)
	}
	return count, nil
}

func (ix *LocalIndex) scanDir(modelType graphapi.ModelType, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !modelExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		record, err := ix.describe(modelType, path)
		if err != nil {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := ix.db.Put(indexKey(modelType, record.Name), data); err != nil {
			return err
		}
		count++
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("Skipping missing model directory", "dir", dir, "type", modelType)
		return count, nil
	}
	return count, err
}

func (ix *LocalIndex) describe(modelType graphapi.ModelType, path string) (ModelFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ModelFile{}, err
	}
	file := filepath.Base(path)
	name := strings.TrimSuffix(file, filepath.Ext(file))

	// Unchanged files keep their record and skip the hash
	if existing, err := ix.get(indexKey(modelType, name)); err == nil &&
		existing.Path == path && existing.Size == info.Size() {
		return existing, nil
	}

	sum, err := hashFile(path)
	if err != nil {
		return ModelFile{}, err
	}
	return ModelFile{
		Type:      modelType,
		Name:      name,
		File:      file,
		Path:      path,
		SHA256:    sum,
		Size:      info.Size(),
		IndexedAt: time.Now().UTC(),
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (ix *LocalIndex) get(key []byte) (ModelFile, error) {
	data, err := ix.db.Get(key)
	if err != nil {
		return ModelFile{}, err
	}
	var record ModelFile
	if err := json.Unmarshal(data, &record); err != nil {
		return ModelFile{}, err
	}
	return record, nil
}

// Lookup returns the indexed record for a reference. Name matching is case
// insensitive.
func (ix *LocalIndex) Lookup(ref graphapi.ModelReference) (ModelFile, error) {
	record, err := ix.get(indexKey(ref.Type, ref.Name))
	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			logger.Debug("Model not in index", "ref", ref.String())
			return ModelFile{}, fmt.Errorf("%w: %s", ErrModelNotFound, ref)
		}
		return ModelFile{}, err
	}
	return record, nil
}

// ResolveModel implements graphapi.ModelResolver.
func (ix *LocalIndex) ResolveModel(ref graphapi.ModelReference) (string, error) {
	record, err := ix.Lookup(ref)
	if err != nil {
		return "", err
	}
	return record.File, nil
}

// Search returns the indexed models of a type whose names start with prefix,
// sorted by name. An empty prefix lists all of them.
func (ix *LocalIndex) Search(modelType graphapi.ModelType, prefix string) ([]ModelFile, error) {
	var out []ModelFile
	err := ix.db.Scan(indexKey(modelType, prefix), func(key []byte) error {
		record, err := ix.get(key)
		if err != nil {
			return err
		}
		out = append(out, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
