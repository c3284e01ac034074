package jobroles

import (
	"time"

	"resumewizard/internal/errors"
	"resumewizard/internal/watch"
)

// WatchCatalog reloads the catalog from path whenever the file changes. The
// returned watcher is already running; the caller stops it.
func WatchCatalog(catalog *Catalog, path string, debounce time.Duration, logger *errors.Logger) (*watch.FileWatcher, error) {
	if logger == nil {
		logger = errors.Discard()
	}

	reload := func() {
		if err := catalog.LoadFile(path); err != nil {
			logger.LogError(err, "Failed to reload job role catalog", "path", path)
			return
		}
		logger.Info("Job role catalog reloaded", "path", path, "count", len(catalog.Roles()))
	}

	fw := watch.New("job-roles", []string{path}, debounce, reload, logger)
	if err := fw.Start(); err != nil {
		return nil, err
	}
	return fw, nil
}
