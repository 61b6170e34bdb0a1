// Package admin provides administrative operations on the sync state.
package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	"github.com/OnlyOnCloud/TallySyncService/internal/logging"
)

// ResetTimeout is the maximum duration for a state reset.
const ResetTimeout = 30 * time.Second

// ResetTables clears the persisted state of the named tables, forcing the
// next cycle to bootstrap them again. With no names every table in the
// document is cleared. Returns the names that were reset, sorted.
//
// The caller must make sure no sync cycle runs concurrently; the web layer
// does this through core.Service.Exclusive.
func ResetTables(ctx context.Context, store core.StateStore, names ...string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	doc, err := store.Load(ctx)
	if err != nil {
		return nil, &core.PersistError{Err: fmt.Errorf("load state: %w", err)}
	}

	names = append([]string(nil), names...)
	if len(names) == 0 {
		for name := range doc.Tables {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if doc.Tables == nil {
		doc.Tables = make(map[string]*core.TableSyncState)
	}
	for _, name := range names {
		doc.Tables[name] = core.NewTableSyncState(name)
	}

	if err := store.Save(ctx, doc); err != nil {
		return nil, &core.PersistError{Err: fmt.Errorf("save state: %w", err)}
	}

	logging.WithFields(ctx, "tables", names).Info("sync state reset")
	return names, nil
}
