package indexenc

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/dwn/pkg/filter"
	"github.com/cuemby/dwn/pkg/kv"
)

// Entry is one matching index hit: the message it points at and the
// watermark it was indexed under.
type Entry struct {
	MessageCid string
	Watermark  string
}

// Store is a composite-key tag index backed by one kv.Partition.
type Store struct {
	p *kv.Partition
}

// New wraps a partition as an index Store.
func New(p *kv.Partition) *Store { return &Store{p: p} }

type companion struct {
	Watermark string         `cbor:"watermark"`
	Indexes   map[string]any `cbor:"indexes"`
}

func companionKey(messageCid string) []byte {
	return []byte("__" + messageCid + "__idx")
}

func compositeKey(property, encodedValue, watermark, messageCid string) []byte {
	return []byte(property + "\x00" + encodedValue + "\x00" + watermark + "\x00" + messageCid)
}

func compositeValue() []byte { return []byte{1} }

// Put indexes messageCid at watermark under every value in indexes. indexes
// maps a tag/property name to a scalar or, for array-valued tags, a []any;
// each array element gets its own composite key so an AnyOf/equality scan
// against any element finds the message (spec.md §4.4, array-valued tags).
func (s *Store) Put(messageCid, watermark string, indexes map[string]any) error {
	ops, err := s.PutOps(messageCid, watermark, indexes)
	if err != nil {
		return err
	}
	return s.p.Batch(ops)
}

// PutOps builds the write Ops for Put without applying them, so a caller can
// fold them into a kv.DB.CrossBatch alongside writes to sibling partitions.
func (s *Store) PutOps(messageCid, watermark string, indexes map[string]any) ([]kv.Op, error) {
	var ops []kv.Op
	for prop, val := range indexes {
		if err := kv.ValidateSegment(prop); err != nil {
			return nil, fmt.Errorf("indexenc: property %q: %w", prop, err)
		}
		values := []any{val}
		if arr, ok := val.([]any); ok {
			values = arr
		}
		for _, v := range values {
			enc, err := filter.Encode(v)
			if err != nil {
				return nil, fmt.Errorf("indexenc: encode %q: %w", prop, err)
			}
			ops = append(ops, kv.PutOp(compositeKey(prop, enc, watermark, messageCid), compositeValue()))
		}
	}
	doc, err := cbor.Marshal(companion{Watermark: watermark, Indexes: indexes})
	if err != nil {
		return nil, fmt.Errorf("indexenc: encode companion doc: %w", err)
	}
	ops = append(ops, kv.PutOp(companionKey(messageCid), doc))
	return ops, nil
}

// DeleteByCid removes every composite key previously written for messageCid.
// A no-op if messageCid was never indexed.
func (s *Store) DeleteByCid(messageCid string) error {
	ops, err := s.DeleteOps(messageCid)
	if err != nil || ops == nil {
		return err
	}
	return s.p.Batch(ops)
}

// DeleteOps builds the delete Ops for DeleteByCid without applying them, for
// folding into a kv.DB.CrossBatch. Returns (nil, nil) if messageCid was
// never indexed.
func (s *Store) DeleteOps(messageCid string) ([]kv.Op, error) {
	raw, found, err := s.p.Get(companionKey(messageCid))
	if err != nil || !found {
		return nil, err
	}
	var c companion
	if err := cbor.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("indexenc: decode companion doc: %w", err)
	}
	ops := []kv.Op{kv.DeleteOp(companionKey(messageCid))}
	for prop, val := range c.Indexes {
		values := []any{val}
		if arr, ok := val.([]any); ok {
			values = arr
		}
		for _, v := range values {
			enc, err := filter.Encode(v)
			if err != nil {
				continue
			}
			ops = append(ops, kv.DeleteOp(compositeKey(prop, enc, c.Watermark, messageCid)))
		}
	}
	return ops, nil
}

// Partition returns the underlying partition, for callers assembling a
// kv.DB.CrossBatch across this store and sibling partitions.
func (s *Store) Partition() *kv.Partition { return s.p }

// Query evaluates a disjunction of filter conjunctions — filters[i] is an
// AND across its properties, and results union across filters[i] — against
// the index, returning every match with watermark strictly greater than
// cursor (cursor == "" matches from the beginning), sorted ascending by
// watermark (ULID strings are lexicographically time-ordered).
func (s *Store) Query(filters []map[string]filter.Condition, cursor string) ([]Entry, error) {
	byCid := map[string]Entry{}
	for _, conjunction := range filters {
		matches, err := s.matchConjunction(conjunction)
		if err != nil {
			return nil, err
		}
		for _, e := range matches {
			if e.Watermark <= cursor {
				continue
			}
			existing, ok := byCid[e.MessageCid]
			if !ok || e.Watermark > existing.Watermark {
				byCid[e.MessageCid] = e
			}
		}
	}
	out := make([]Entry, 0, len(byCid))
	for _, e := range byCid {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Watermark < out[j].Watermark })
	return out, nil
}

// matchConjunction intersects the per-property hit sets of one AND clause.
func (s *Store) matchConjunction(conjunction map[string]filter.Condition) ([]Entry, error) {
	required := len(conjunction)
	if required == 0 {
		return nil, nil
	}
	remaining := map[string]map[string]bool{} // messageCid -> unmatched property names
	watermarks := map[string]string{}
	for prop, cond := range conjunction {
		hits, err := s.scanProperty(prop, cond)
		if err != nil {
			return nil, err
		}
		for _, e := range hits {
			set, ok := remaining[e.MessageCid]
			if !ok {
				set = map[string]bool{}
				for p := range conjunction {
					set[p] = true
				}
				remaining[e.MessageCid] = set
			}
			delete(set, prop)
			watermarks[e.MessageCid] = e.Watermark
		}
	}
	var out []Entry
	for cid, set := range remaining {
		if len(set) == 0 {
			out = append(out, Entry{MessageCid: cid, Watermark: watermarks[cid]})
		}
	}
	return out, nil
}

// scanProperty evaluates a single condition against one property's
// sub-keyspace. Equal and AnyOf issue direct seeks on the encoded-value
// prefix; Range and StartsWith scan the property's full sub-keyspace and
// filter in memory via pkg/filter (see doc.go for the rationale).
func (s *Store) scanProperty(prop string, c filter.Condition) ([]Entry, error) {
	propPrefix := prop + "\x00"
	switch {
	case c.Equal != nil:
		enc, err := filter.Encode(c.Equal)
		if err != nil {
			return nil, err
		}
		return s.seekEqual(propPrefix, enc)
	case c.AnyOf != nil:
		encs, err := filter.AnyOfEncoded(c.AnyOf)
		if err != nil {
			return nil, err
		}
		var out []Entry
		for _, enc := range encs {
			hits, err := s.seekEqual(propPrefix, enc)
			if err != nil {
				return nil, err
			}
			out = append(out, hits...)
		}
		return out, nil
	case c.Range != nil:
		bounds, err := filter.RangeBounds(*c.Range)
		if err != nil {
			return nil, err
		}
		return s.scanBounds(propPrefix, bounds)
	case c.StartsWith != "":
		wantPrefix := filter.StartsWithPrefix(c.StartsWith)
		var out []Entry
		err := s.p.Prefix([]byte(propPrefix), func(e kv.Entry) bool {
			enc, wm, cid, ok := splitComposite(e.Key, propPrefix)
			if ok && strings.HasPrefix(enc, wantPrefix) {
				out = append(out, Entry{MessageCid: cid, Watermark: wm})
			}
			return true
		})
		return out, err
	}
	return nil, nil
}

func (s *Store) seekEqual(propPrefix, enc string) ([]Entry, error) {
	seek := []byte(propPrefix + enc + "\x00")
	var out []Entry
	err := s.p.Prefix(seek, func(e kv.Entry) bool {
		rest := e.Key[len(seek):]
		parts := bytes.SplitN(rest, []byte{0}, 2)
		if len(parts) != 2 {
			return true
		}
		out = append(out, Entry{Watermark: string(parts[0]), MessageCid: string(parts[1])})
		return true
	})
	return out, err
}

func (s *Store) scanBounds(propPrefix string, bounds filter.Bounds) ([]Entry, error) {
	var out []Entry
	collect := func(e kv.Entry) bool {
		enc, wm, cid, ok := splitComposite(e.Key, propPrefix)
		if ok && filter.InBounds(enc, bounds) {
			out = append(out, Entry{MessageCid: cid, Watermark: wm})
		}
		return true
	}
	err := s.p.Prefix([]byte(propPrefix), collect)
	if err != nil {
		return nil, err
	}
	if bounds.ProbeEqualToUpper {
		probe, err := s.seekEqual(propPrefix, bounds.Upper)
		if err != nil {
			return nil, err
		}
		out = append(out, probe...)
	}
	return out, nil
}

// splitComposite parses a key known to start with propPrefix into its
// encoded value, watermark, and message CID segments.
func splitComposite(key []byte, propPrefix string) (encodedValue, watermark, messageCid string, ok bool) {
	rest := key[len(propPrefix):]
	parts := bytes.SplitN(rest, []byte{0}, 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return string(parts[0]), string(parts[1]), string(parts[2]), true
}
