// Package catalog is the badger-backed persistence collaborator: a db
// wrapper holding the broader design-system store the engine reads from and
// the host writes back to. Records are JSON under single-byte key prefixes.
package catalog

import (
	"encoding/json"
	"runtime"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// Key prefixes, one keyspace per record type.
var (
	kTokens     = []byte{0x01}
	kTaxonomies = []byte{0x02}
	kDimensions = []byte{0x03}
	kCollection = []byte{0x04}
	kValueTypes = []byte{0x05}
	kSystemVars = []byte{0x06}
	kAlgorithms = []byte{0x07}
)

// Opts specifies params for opening a catalog.
type Opts struct {
	DbPathName string // omit for an in-memory db
	ReadOnly   bool   // open in read-only mode
}

type catalog struct {
	db       *badger.DB
	readOnly bool
}

// OpenCatalog opens (or creates) a design-system catalog.
func OpenCatalog(opts Opts) (tokens.Store, error) {
	dbOpts := badger.DefaultOptions(opts.DbPathName)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false // single-writer host, disable for performance
	dbOpts.Logger = nil

	// Badger for windows currently does not support read-only mode
	if runtime.GOOS == "windows" {
		dbOpts.ReadOnly = false
	}

	if len(opts.DbPathName) == 0 {
		if opts.ReadOnly {
			return nil, errors.Wrap(tokens.ErrBadCatalogParam, "DbPathName must be specified for read-only catalog")
		}
		dbOpts.InMemory = true
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}

	return &catalog{
		db:       db,
		readOnly: opts.ReadOnly,
	}, nil
}

func (cat *catalog) IsReadOnly() bool {
	return cat.readOnly
}

func (cat *catalog) Close() error {
	if cat.db == nil {
		return nil
	}
	err := cat.db.Close()
	cat.db = nil
	return err
}

func key(prefix []byte, id string) []byte {
	return append(append([]byte{}, prefix...), id...)
}

// readAll unmarshals every record under a prefix through decode, in key order.
func (cat *catalog) readAll(prefix []byte, decode func(val []byte) error) error {
	return cat.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				return decode(val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceAll swaps the whole keyspace under a prefix for the given records.
func (cat *catalog) replaceAll(prefix []byte, ids []string, vals [][]byte) error {
	if cat.readOnly {
		return tokens.ErrReadOnly
	}
	return cat.db.Update(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for i, id := range ids {
			if err := txn.Set(key(prefix, id), vals[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func marshalEach[T any](records []T, idOf func(T) string) ([]string, [][]byte, error) {
	ids := make([]string, len(records))
	vals := make([][]byte, len(records))
	for i, rec := range records {
		buf, err := json.Marshal(rec)
		if err != nil {
			return nil, nil, err
		}
		ids[i] = idOf(rec)
		vals[i] = buf
	}
	return ids, vals, nil
}

func readTyped[T any](cat *catalog, prefix []byte) ([]T, error) {
	var out []T
	err := cat.readAll(prefix, func(val []byte) error {
		var rec T
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (cat *catalog) GetTokens() ([]tokens.Token, error) {
	return readTyped[tokens.Token](cat, kTokens)
}

func (cat *catalog) SetTokens(toks []tokens.Token) error {
	ids, vals, err := marshalEach(toks, func(t tokens.Token) string { return t.ID })
	if err != nil {
		return err
	}
	return cat.replaceAll(kTokens, ids, vals)
}

func (cat *catalog) GetTaxonomies() ([]tokens.Taxonomy, error) {
	return readTyped[tokens.Taxonomy](cat, kTaxonomies)
}

func (cat *catalog) SetTaxonomies(taxonomies []tokens.Taxonomy) error {
	ids, vals, err := marshalEach(taxonomies, func(t tokens.Taxonomy) string { return t.ID })
	if err != nil {
		return err
	}
	return cat.replaceAll(kTaxonomies, ids, vals)
}

func (cat *catalog) GetDimensions() ([]tokens.Dimension, error) {
	return readTyped[tokens.Dimension](cat, kDimensions)
}

func (cat *catalog) SetDimensions(dims []tokens.Dimension) error {
	ids, vals, err := marshalEach(dims, func(d tokens.Dimension) string { return d.ID })
	if err != nil {
		return err
	}
	return cat.replaceAll(kDimensions, ids, vals)
}

func (cat *catalog) GetCollections() ([]tokens.TokenCollection, error) {
	return readTyped[tokens.TokenCollection](cat, kCollection)
}

func (cat *catalog) SetCollections(collections []tokens.TokenCollection) error {
	ids, vals, err := marshalEach(collections, func(c tokens.TokenCollection) string { return c.ID })
	if err != nil {
		return err
	}
	return cat.replaceAll(kCollection, ids, vals)
}

func (cat *catalog) GetValueTypes() ([]tokens.ValueType, error) {
	return readTyped[tokens.ValueType](cat, kValueTypes)
}

// SetValueTypes is not part of tokens.Store but the CLI seeds with it.
func (cat *catalog) SetValueTypes(valueTypes []tokens.ValueType) error {
	ids, vals, err := marshalEach(valueTypes, func(v tokens.ValueType) string { return v.ID })
	if err != nil {
		return err
	}
	return cat.replaceAll(kValueTypes, ids, vals)
}

func (cat *catalog) GetSystemVariables() ([]tokens.Variable, error) {
	return readTyped[tokens.Variable](cat, kSystemVars)
}

func (cat *catalog) SetSystemVariables(vars []tokens.Variable) error {
	ids, vals, err := marshalEach(vars, func(v tokens.Variable) string { return v.ID })
	if err != nil {
		return err
	}
	return cat.replaceAll(kSystemVars, ids, vals)
}

func (cat *catalog) GetAlgorithms() ([]tokens.Algorithm, error) {
	return readTyped[tokens.Algorithm](cat, kAlgorithms)
}

func (cat *catalog) SaveAlgorithm(a *tokens.Algorithm) error {
	if cat.readOnly {
		return tokens.ErrReadOnly
	}
	buf, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return cat.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(kAlgorithms, a.ID), buf)
	})
}
