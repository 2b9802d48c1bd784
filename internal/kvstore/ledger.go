// Package kvstore is a Badger-backed placement ledger for hosts that prefer
// an embedded key-value store over SQLite.
//
// Keys:
//
//	block:<region>:<world>:<x>:<y>:<z>
//	fluid:<region>:<world>:<x>:<y>:<z>:<kind>
//	entity:<id>            -> region
//	entreg:<region>:<id>
package kvstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/lazypower/decayregion/internal/ledger"
	"github.com/lazypower/decayregion/internal/world"
)

// Ledger stores placement records in Badger. Writes are applied
// immediately without fsync; Flush syncs them to disk.
type Ledger struct {
	db   *badger.DB
	Path string
}

var _ ledger.Ledger = (*Ledger)(nil)

// Open opens (or creates) a ledger directory.
func Open(dir string) (*Ledger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Ledger{db: db, Path: dir}, nil
}

// OpenMemory opens a ledger that lives only in memory, for tests.
func OpenMemory() (*Ledger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger memory: %w", err)
	}
	return &Ledger{db: db, Path: ":memory:"}, nil
}

func blockKey(regionKey string, loc world.Location) []byte {
	return []byte(fmt.Sprintf("block:%s:%s:%d:%d:%d", regionKey, loc.World, loc.X, loc.Y, loc.Z))
}

func fluidKey(regionKey string, loc world.Location, kind world.FluidKind) []byte {
	return []byte(fmt.Sprintf("fluid:%s:%s:%d:%d:%d:%s", regionKey, loc.World, loc.X, loc.Y, loc.Z, kind))
}

func entityKey(id uuid.UUID) []byte {
	return []byte("entity:" + id.String())
}

func entityIndexKey(regionKey string, id uuid.UUID) []byte {
	return []byte("entreg:" + regionKey + ":" + id.String())
}

// parseCell reads "<world>:<x>:<y>:<z>" plus trailing extra fields. The
// world name may itself contain colons.
func parseCell(rest string, extra int) (world.Location, []string, bool) {
	parts := strings.Split(rest, ":")
	if len(parts) < 4+extra {
		return world.Location{}, nil, false
	}
	n := len(parts) - extra
	var xyz [3]int
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(parts[n-3+i])
		if err != nil {
			return world.Location{}, nil, false
		}
		xyz[i] = v
	}
	w := strings.Join(parts[:n-3], ":")
	return world.At(w, xyz[0], xyz[1], xyz[2]), parts[n:], true
}

func (l *Ledger) set(key []byte, val []byte) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (l *Ledger) del(key []byte) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// scan calls fn with the remainder of every key under prefix.
func scan(txn *badger.Txn, prefix string, fn func(rest string) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		k := string(it.Item().KeyCopy(nil))
		if err := fn(strings.TrimPrefix(k, prefix)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) RecordBlock(regionKey string, loc world.Location) error {
	if err := l.set(blockKey(regionKey, loc), nil); err != nil {
		return fmt.Errorf("record block: %w", err)
	}
	return nil
}

func (l *Ledger) RemoveBlock(regionKey string, loc world.Location) error {
	if err := l.del(blockKey(regionKey, loc)); err != nil {
		return fmt.Errorf("remove block: %w", err)
	}
	return nil
}

func (l *Ledger) RecordEntity(regionKey string, id uuid.UUID) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(id))
		switch {
		case err == nil:
			prev, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(entityIndexKey(string(prev), id)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(entityKey(id), []byte(regionKey)); err != nil {
			return err
		}
		return txn.Set(entityIndexKey(regionKey, id), nil)
	})
	if err != nil {
		return fmt.Errorf("record entity: %w", err)
	}
	return nil
}

func (l *Ledger) RemoveEntity(id uuid.UUID) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		regionKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(entityIndexKey(string(regionKey), id)); err != nil {
			return err
		}
		return txn.Delete(entityKey(id))
	})
	if err != nil {
		return fmt.Errorf("remove entity: %w", err)
	}
	return nil
}

func (l *Ledger) RecordFluidSource(regionKey string, loc world.Location, kind world.FluidKind) error {
	if err := l.set(fluidKey(regionKey, loc, kind), nil); err != nil {
		return fmt.Errorf("record fluid source: %w", err)
	}
	return nil
}

func (l *Ledger) RemoveFluidSource(regionKey string, loc world.Location, kind world.FluidKind) error {
	if err := l.del(fluidKey(regionKey, loc, kind)); err != nil {
		return fmt.Errorf("remove fluid source: %w", err)
	}
	return nil
}

var errFound = errors.New("found")

func (l *Ledger) IsNearFluidSource(regionKey string, loc world.Location, radius int) (bool, error) {
	err := l.db.View(func(txn *badger.Txn) error {
		return scan(txn, "fluid:"+regionKey+":"+loc.World+":", func(rest string) error {
			c, _, ok := parseCell(loc.World+":"+rest, 1)
			if !ok {
				return nil
			}
			if abs(c.X-loc.X) <= radius && abs(c.Y-loc.Y) <= radius && abs(c.Z-loc.Z) <= radius {
				return errFound
			}
			return nil
		})
	})
	if errors.Is(err, errFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("scan fluid sources: %w", err)
	}
	return false, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (l *Ledger) Records(regionKey string) (ledger.Records, error) {
	var out ledger.Records
	err := l.db.View(func(txn *badger.Txn) error {
		if err := scan(txn, "block:"+regionKey+":", func(rest string) error {
			if loc, _, ok := parseCell(rest, 0); ok {
				out.Blocks = append(out.Blocks, loc)
			}
			return nil
		}); err != nil {
			return err
		}
		if err := scan(txn, "entreg:"+regionKey+":", func(rest string) error {
			if id, err := uuid.Parse(rest); err == nil {
				out.Entities = append(out.Entities, id)
			}
			return nil
		}); err != nil {
			return err
		}
		return scan(txn, "fluid:"+regionKey+":", func(rest string) error {
			loc, extra, ok := parseCell(rest, 1)
			if !ok {
				return nil
			}
			if kind, ok := world.ParseFluidKind(extra[0]); ok {
				out.Fluids = append(out.Fluids, ledger.FluidSource{Location: loc, Kind: kind})
			}
			return nil
		})
	})
	if err != nil {
		return out, fmt.Errorf("read records %s: %w", regionKey, err)
	}
	return out, nil
}

func (l *Ledger) Counts(regionKey string) (ledger.Counts, error) {
	recs, err := l.Records(regionKey)
	if err != nil {
		return ledger.Counts{}, err
	}
	return ledger.Counts{
		Blocks:   len(recs.Blocks),
		Entities: len(recs.Entities),
		Fluids:   len(recs.Fluids),
	}, nil
}

func (l *Ledger) RegionKeys() ([]string, error) {
	seen := make(map[string]bool)
	err := l.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{"block:", "entreg:", "fluid:"} {
			if err := scan(txn, prefix, func(rest string) error {
				if key, _, ok := strings.Cut(rest, ":"); ok {
					seen[key] = true
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan region keys: %w", err)
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *Ledger) DeleteRegion(regionKey string) error {
	recs, err := l.Records(regionKey)
	if err != nil {
		return err
	}
	for _, id := range recs.Entities {
		if err := l.RemoveEntity(id); err != nil {
			return err
		}
	}
	if err := l.db.DropPrefix(
		[]byte("block:"+regionKey+":"),
		[]byte("fluid:"+regionKey+":"),
	); err != nil {
		return fmt.Errorf("drop region %s: %w", regionKey, err)
	}
	return nil
}

func (l *Ledger) DeleteAll() error {
	if err := l.db.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	return nil
}

// RenameRegion rewrites every key of oldKey under newKey in one transaction.
func (l *Ledger) RenameRegion(oldKey, newKey string) error {
	recs, err := l.Records(oldKey)
	if err != nil {
		return err
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		for _, loc := range recs.Blocks {
			if err := txn.Delete(blockKey(oldKey, loc)); err != nil {
				return err
			}
			if err := txn.Set(blockKey(newKey, loc), nil); err != nil {
				return err
			}
		}
		for _, id := range recs.Entities {
			if err := txn.Delete(entityIndexKey(oldKey, id)); err != nil {
				return err
			}
			if err := txn.Set(entityIndexKey(newKey, id), nil); err != nil {
				return err
			}
			if err := txn.Set(entityKey(id), []byte(newKey)); err != nil {
				return err
			}
		}
		for _, f := range recs.Fluids {
			if err := txn.Delete(fluidKey(oldKey, f.Location, f.Kind)); err != nil {
				return err
			}
			if err := txn.Set(fluidKey(newKey, f.Location, f.Kind), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldKey, newKey, err)
	}
	return nil
}

// Flush syncs written records to disk.
func (l *Ledger) Flush() error {
	if l.Path == ":memory:" {
		return nil
	}
	if err := l.db.Sync(); err != nil {
		return fmt.Errorf("sync badger: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
