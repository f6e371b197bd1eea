package main

import (
	"context"
	"fmt"

	"github.com/theimaginaryfoundation/thread-digest/digest"
	"github.com/theimaginaryfoundation/thread-digest/digest/source"
)

// loadThreads reads threads from the configured dump path, or from the archive when none is set.
func (a *app) loadThreads(ctx context.Context) ([]digest.Thread, error) {
	var threads []digest.Thread
	if a.cfg.Threads != "" {
		ts, err := source.LoadPath(a.cfg.Threads)
		if err != nil {
			return nil, err
		}
		threads = ts
	} else {
		archive, err := source.OpenArchive(a.cfg.ArchivePath())
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		ts, err := archive.Threads(ctx, a.cfg.MaxThreads)
		if err != nil {
			return nil, err
		}
		threads = ts
	}
	return limitThreads(threads, a.cfg.MaxThreads), nil
}

func limitThreads(threads []digest.Thread, max int) []digest.Thread {
	if max > 0 && len(threads) > max {
		return threads[:max]
	}
	return threads
}
