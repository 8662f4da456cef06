package state

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/user/docchat/internal/types"
)

// Open returns the store engine named by driver ("file" or "sqlite") rooted at
// dataDir. The returned closer must be called on shutdown.
func Open(driver, dataDir, key string) (types.SessionStore, io.Closer, error) {
	switch driver {
	case "", "file":
		return NewFileStore(dataDir, key), nopCloser{}, nil
	case "sqlite":
		store, err := OpenSQLite(filepath.Join(dataDir, "docchat.db"), key)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s (supported: file, sqlite)", driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
