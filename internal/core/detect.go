package core

// ChangeSet is the classification of one extraction against the digest index.
type ChangeSet struct {
	// Changed holds inserts and updates in extraction order, with Operation set.
	Changed   []SyncRecord
	Inserts   int
	Updates   int
	Unchanged int
}

// DetectChanges compares records against the stored digest index.
// A record whose id is unknown is an insert; a known id with a different
// digest is an update; an equal digest is unchanged and dropped.
// The index is not modified.
func DetectChanges(records []SyncRecord, index map[string]string) ChangeSet {
	var cs ChangeSet
	for _, rec := range records {
		prev, known := index[rec.ID]
		switch {
		case !known:
			rec.Operation = OpInsert
			cs.Inserts++
		case prev != rec.Digest:
			rec.Operation = OpUpdate
			cs.Updates++
		default:
			cs.Unchanged++
			continue
		}
		cs.Changed = append(cs.Changed, rec)
	}
	return cs
}

// MarkAll returns records tagged with op. Used for bootstrap, where every
// extracted record is sent regardless of the index.
func MarkAll(records []SyncRecord, op Operation) []SyncRecord {
	out := make([]SyncRecord, len(records))
	for i, rec := range records {
		rec.Operation = op
		out[i] = rec
	}
	return out
}

// DetectDeletions always returns nil.
//
// A record missing from a windowed extraction may simply be outside the
// window, so absence cannot be read as deletion. Reliable deletions need a
// full-table id reconciliation, which the source export does not provide
// cheaply. Digest entries for records deleted at the source stay in the index.
func DetectDeletions(records []SyncRecord, index map[string]string) []SyncRecord {
	return nil
}
