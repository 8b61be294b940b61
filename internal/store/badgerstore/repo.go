package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/store"
)

type iterationRecord struct {
	Seq         uint64    `json:"seq"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedDate time.Time `json:"created_date"`
	Data        []byte    `json:"data"`
}

func byThreatKey(threatID, mitigationID string) []byte {
	return []byte(byThreatPrefix + threatID + "/" + mitigationID)
}

func (d *DB) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

func (d *DB) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// getJSON decodes the value at key into v. A missing key yields
// store.ErrNotFound.
func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

// scanPrefix calls fn with every value under prefix in key order.
func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: []byte(prefix)})
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// prefixKeys returns copies of all keys under prefix.
func prefixKeys(txn *badger.Txn, prefix string) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// UpsertThreat inserts or replaces a threat.
func (d *DB) UpsertThreat(ctx context.Context, t models.Threat) error {
	t.CreatedDate = models.Now()
	err := d.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, threatPrefix+t.ID, t)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: upsert threat %s: %w", t.ID, err)
	}
	return nil
}

// GetThreat returns one threat or store.ErrNotFound.
func (d *DB) GetThreat(ctx context.Context, id string) (models.Threat, error) {
	var t models.Threat
	err := d.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, threatPrefix+id, &t)
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.Threat{}, fmt.Errorf("threat %s: %w", id, err)
	}
	if err != nil {
		return models.Threat{}, fmt.Errorf("badgerstore: get threat %s: %w", id, err)
	}
	return t, nil
}

// ListThreats returns every threat ordered by id.
func (d *DB) ListThreats(ctx context.Context) ([]models.Threat, error) {
	out := []models.Threat{}
	err := d.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, threatPrefix, func(val []byte) error {
			var t models.Threat
			if err := json.Unmarshal(val, &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list threats: %w", err)
	}
	return out, nil
}

// DeleteThreat removes the threat, its mitigations and their index entries
// in one transaction. Mitigations of a missing threat are removed too before
// ErrNotFound is returned.
func (d *DB) DeleteThreat(ctx context.Context, id string) error {
	var missing bool
	err := d.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(threatPrefix + id)); err != nil {
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			missing = true
		}
		prefix := byThreatPrefix + id + "/"
		for _, key := range prefixKeys(txn, prefix) {
			mitigationID := strings.TrimPrefix(string(key), prefix)
			var m models.Mitigation
			err := getJSON(txn, mitigationPrefix+mitigationID, &m)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			// Threat ids containing '/' share index prefixes.
			if err != nil || m.ThreatID != id {
				continue
			}
			if err := txn.Delete([]byte(mitigationPrefix + mitigationID)); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		if missing {
			return nil
		}
		return txn.Delete([]byte(threatPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("badgerstore: delete threat %s: %w", id, err)
	}
	if missing {
		return fmt.Errorf("threat %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpsertMitigation inserts or replaces a mitigation and moves its index entry
// when the threat changed.
func (d *DB) UpsertMitigation(ctx context.Context, m models.Mitigation) error {
	m.CreatedDate = models.Now()
	err := d.update(ctx, func(txn *badger.Txn) error {
		var prev models.Mitigation
		switch err := getJSON(txn, mitigationPrefix+m.ID, &prev); {
		case err == nil:
			if prev.ThreatID != m.ThreatID {
				if err := txn.Delete(byThreatKey(prev.ThreatID, m.ID)); err != nil {
					return err
				}
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := setJSON(txn, mitigationPrefix+m.ID, m); err != nil {
			return err
		}
		return txn.Set(byThreatKey(m.ThreatID, m.ID), nil)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: upsert mitigation %s: %w", m.ID, err)
	}
	return nil
}

// GetMitigation returns one mitigation or store.ErrNotFound.
func (d *DB) GetMitigation(ctx context.Context, id string) (models.Mitigation, error) {
	var m models.Mitigation
	err := d.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, mitigationPrefix+id, &m)
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.Mitigation{}, fmt.Errorf("mitigation %s: %w", id, err)
	}
	if err != nil {
		return models.Mitigation{}, fmt.Errorf("badgerstore: get mitigation %s: %w", id, err)
	}
	return m, nil
}

// ListMitigationsForThreat returns the threat's mitigations ordered by id.
func (d *DB) ListMitigationsForThreat(ctx context.Context, threatID string) ([]models.Mitigation, error) {
	out := []models.Mitigation{}
	err := d.view(ctx, func(txn *badger.Txn) error {
		prefix := byThreatPrefix + threatID + "/"
		for _, key := range prefixKeys(txn, prefix) {
			var m models.Mitigation
			err := getJSON(txn, mitigationPrefix+strings.TrimPrefix(string(key), prefix), &m)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if m.ThreatID == threatID {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list mitigations of %s: %w", threatID, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListAllMitigations returns every mitigation with its threat's name.
func (d *DB) ListAllMitigations(ctx context.Context) ([]models.MitigationWithThreat, error) {
	out := []models.MitigationWithThreat{}
	err := d.view(ctx, func(txn *badger.Txn) error {
		names := map[string]string{}
		return scanPrefix(txn, mitigationPrefix, func(val []byte) error {
			var m models.Mitigation
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			name, ok := names[m.ThreatID]
			if !ok {
				var t models.Threat
				switch err := getJSON(txn, threatPrefix+m.ThreatID, &t); {
				case err == nil:
					name = t.Name
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
				names[m.ThreatID] = name
			}
			out = append(out, models.MitigationWithThreat{Mitigation: m, ThreatName: name})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list all mitigations: %w", err)
	}
	return out, nil
}

// DeleteMitigation removes one mitigation and its index entry.
func (d *DB) DeleteMitigation(ctx context.Context, id string) error {
	err := d.update(ctx, func(txn *badger.Txn) error {
		var m models.Mitigation
		if err := getJSON(txn, mitigationPrefix+id, &m); err != nil {
			return err
		}
		if err := txn.Delete(byThreatKey(m.ThreatID, id)); err != nil {
			return err
		}
		return txn.Delete([]byte(mitigationPrefix + id))
	})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("mitigation %s: %w", id, err)
	}
	if err != nil {
		return fmt.Errorf("badgerstore: delete mitigation %s: %w", id, err)
	}
	return nil
}

// UpsertSubdomain inserts or replaces a subdomain.
func (d *DB) UpsertSubdomain(ctx context.Context, s models.Subdomain) error {
	s.CreatedDate = models.Now()
	err := d.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, subdomainPrefix+s.ID, s)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: upsert subdomain %s: %w", s.ID, err)
	}
	return nil
}

// ListSubdomains returns subdomains ordered by parent domain and name,
// optionally filtered by parent.
func (d *DB) ListSubdomains(ctx context.Context, parent string) ([]models.Subdomain, error) {
	out := []models.Subdomain{}
	err := d.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, subdomainPrefix, func(val []byte) error {
			var s models.Subdomain
			if err := json.Unmarshal(val, &s); err != nil {
				return err
			}
			if parent == "" || s.ParentDomain == parent {
				out = append(out, s)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list subdomains: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ParentDomain != b.ParentDomain {
			return a.ParentDomain < b.ParentDomain
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out, nil
}

// UpsertIteration stores a snapshot under name. An overwritten iteration
// keeps its sequence number.
func (d *DB) UpsertIteration(ctx context.Context, name, description string, data []byte) error {
	rec := iterationRecord{
		Name:        name,
		Description: description,
		CreatedDate: models.Now(),
		Data:        data,
	}
	err := d.update(ctx, func(txn *badger.Txn) error {
		var prev iterationRecord
		switch err := getJSON(txn, iterationPrefix+name, &prev); {
		case err == nil:
			rec.Seq = prev.Seq
		case errors.Is(err, store.ErrNotFound):
			seq, err := d.seq.Next()
			if err != nil {
				return err
			}
			rec.Seq = seq
		default:
			return err
		}
		return setJSON(txn, iterationPrefix+name, rec)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: save iteration %q: %w", name, err)
	}
	return nil
}

// LoadIteration returns the stored snapshot bytes or store.ErrNotFound.
func (d *DB) LoadIteration(ctx context.Context, name string) ([]byte, error) {
	var rec iterationRecord
	err := d.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, iterationPrefix+name, &rec)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("iteration %q: %w", name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("badgerstore: load iteration %q: %w", name, err)
	}
	return rec.Data, nil
}

// ListIterations returns saved iterations, newest first.
func (d *DB) ListIterations(ctx context.Context) ([]models.IterationInfo, error) {
	var recs []iterationRecord
	err := d.view(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, iterationPrefix, func(val []byte) error {
			var rec iterationRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			rec.Data = nil
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list iterations: %w", err)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedDate.Equal(recs[j].CreatedDate) {
			return recs[i].CreatedDate.After(recs[j].CreatedDate)
		}
		return recs[i].Seq > recs[j].Seq
	})

	out := make([]models.IterationInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.IterationInfo{Name: rec.Name, Description: rec.Description, CreatedDate: rec.CreatedDate})
	}
	return out, nil
}
