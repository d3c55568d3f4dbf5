package dictionary

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// DefaultDumpURL is the kaikki.org English extraction in JSON Lines form.
const DefaultDumpURL = "https://kaikki.org/dictionary/English/kaikki.org-dictionary-English.jsonl.gz"

// HTTPClient is used for dump downloads. Tests may replace it.
var HTTPClient = &http.Client{Timeout: 30 * time.Minute}

// EnsureDump checks if the dump exists at path. If not, it downloads url to a
// temporary file next to path and renames it into place once complete, so an
// interrupted download never leaves a partial dump behind.
func EnsureDump(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return errors.Errorf("dump not found at %s and no download url configured", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "wiktload")

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "downloading dump")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("download failed: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return errors.Wrap(err, "creating temporary file")
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing dump")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
