// Package artifact describes restorable build packages and the files they
// contain.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Item is one file inside a package, relative to the package root.
type Item struct {
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

// Manifest describes a packaged deployable (zip or folder drop).
type Manifest struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Items      []Item `json:"items"`
}

// Contains reports whether any item path contains name, ignoring case.
func (m Manifest) Contains(name string) bool {
	if name == "" {
		return false
	}
	needle := strings.ToLower(filepath.ToSlash(name))
	for _, it := range m.Items {
		if strings.Contains(strings.ToLower(it.Path), needle) {
			return true
		}
	}
	return false
}

// Digest computes a stable content digest over the manifest items.
func (m Manifest) Digest() string {
	items := append([]Item(nil), m.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return digestStruct(struct {
		ID    string `json:"id"`
		Items []Item `json:"items"`
	}{m.ID, items})
}

// FromDir builds a manifest listing every regular file under root.
func FromDir(id, root string) (Manifest, error) {
	m := Manifest{ID: id, Name: filepath.Base(root)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		m.Items = append(m.Items, Item{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return m, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(m.Items, func(i, j int) bool { return m.Items[i].Path < m.Items[j].Path })
	m.InstanceID = m.Digest()
	return m, nil
}

func digestStruct(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
