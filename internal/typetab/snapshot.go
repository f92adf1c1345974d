package typetab

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotExt is the file extension of packed tables.
const SnapshotExt = ".ttab"

// Bump when Table or Snapshot change shape.
const snapshotSchema uint16 = 1

// Snapshot is a validated table packed with msgpack. Hash covers the
// canonical TOML encoding of Table, so a snapshot can be checked against
// the table it claims to come from.
type Snapshot struct {
	Schema uint16   `msgpack:"schema"`
	Source string   `msgpack:"source"`
	Hash   [32]byte `msgpack:"hash"`
	Table  Table    `msgpack:"table"`
}

// Digest hashes the canonical TOML form of tab. Empty and missing lists
// hash alike.
func Digest(tab *Table) ([32]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(canonical(tab)); err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(buf.Bytes()), nil
}

// WriteSnapshot packs tab into path. The file is replaced atomically.
func WriteSnapshot(path, source string, tab *Table) error {
	hash, err := Digest(tab)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(&Snapshot{
		Schema: snapshotSchema,
		Source: source,
		Hash:   hash,
		Table:  *tab,
	})
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".ttab-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name()) //nolint:errcheck // gone after a successful rename
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck,gosec
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadSnapshot loads and verifies a packed table.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if snap.Schema != snapshotSchema {
		return nil, fmt.Errorf("%s: snapshot schema %d, want %d", path, snap.Schema, snapshotSchema)
	}
	hash, err := Digest(&snap.Table)
	if err != nil {
		return nil, err
	}
	if hash != snap.Hash {
		return nil, fmt.Errorf("%s: snapshot digest mismatch", path)
	}
	if err := snap.Table.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &snap, nil
}

func canonical(tab *Table) *Table {
	out := *tab
	out.Probe = nilIfEmpty(tab.Probe)
	out.Types = make([]Decl, len(tab.Types))
	for i, d := range tab.Types {
		d.Fields = nilIfEmpty(d.Fields)
		d.Variants = nilIfEmpty(d.Variants)
		out.Types[i] = d
	}
	return &out
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
