package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Argon2id parameters (OWASP minimum profile).
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

// ErrPepperNotLoaded is returned by the password helpers when LoadPepper was
// never called.
var ErrPepperNotLoaded = errors.New("cryptox: pepper not loaded")

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper reads the server-wide password pepper from path, creating the
// file with a fresh random pepper when it doesn't exist yet. Every instance
// sharing a database must share the same pepper file.
func LoadPepper(path string) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) == 0 {
			return fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		setPepper(string(data))
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("cryptox: read pepper: %w", err)
	}

	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	generated := base64.RawURLEncoding.EncodeToString(buf)

	// O_EXCL so two instances racing on first boot don't overwrite each other.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return LoadPepper(path)
	}
	if err != nil {
		return fmt.Errorf("cryptox: create pepper file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(generated); err != nil {
		return fmt.Errorf("cryptox: write pepper: %w", err)
	}

	setPepper(generated)
	return nil
}

func setPepper(p string) {
	pepperMu.Lock()
	pepper = p
	pepperMu.Unlock()
}

func currentPepper() (string, error) {
	pepperMu.RLock()
	defer pepperMu.RUnlock()
	if pepper == "" {
		return "", ErrPepperNotLoaded
	}
	return pepper, nil
}
