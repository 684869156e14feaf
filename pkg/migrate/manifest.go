package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ManifestFile is written at the root of the migration directory
const ManifestFile = "MANIFEST.json"

// Manifest lists every artifact collected by a run so the operator can
// check the copy that lands in the vault
type Manifest struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	Root      string          `json:"root"`
	Files     []ManifestEntry `json:"files"`
}

// ManifestEntry describes one collected file
type ManifestEntry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
}

// BuildManifest hashes every regular file below root
func BuildManifest(fs afero.Fs, root string, now time.Time) (*Manifest, error) {
	manifest := &Manifest{Version: 1, CreatedAt: now.UTC(), Root: root}

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == ManifestFile {
			return nil
		}
		sum, err := hashFile(fs, path)
		if err != nil {
			return errors.Wrapf(err, "hash %s", path)
		}
		manifest.Files = append(manifest.Files, ManifestEntry{Path: filepath.ToSlash(rel), Size: info.Size(), Sha256: sum})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// WriteManifest builds the manifest for root and stores it there
func WriteManifest(fs afero.Fs, root string, now time.Time) (*Manifest, error) {
	manifest, err := BuildManifest(fs, root, now)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(manifest, "", "\t")
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, filepath.Join(root, ManifestFile), b, 0600); err != nil {
		return nil, err
	}
	return manifest, nil
}

func hashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
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
