package retrieval

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// CategoryVector is one indexed category name.
type CategoryVector struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"-"`
}

// CategoryIndex is an immutable brute-force nearest-neighbour index over
// category name embeddings. Distances are squared Euclidean; smaller is
// closer.
type CategoryIndex struct {
	model   string
	dim     int
	entries []CategoryVector
}

// NewCategoryIndex builds an index over entries. All embeddings must share
// one non-zero dimension. An empty entries slice yields an empty index.
func NewCategoryIndex(entries []CategoryVector) (*CategoryIndex, error) {
	idx := &CategoryIndex{entries: make([]CategoryVector, 0, len(entries))}
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("category %q has an empty embedding", e.Name)
		}
		if idx.dim == 0 {
			idx.dim = len(e.Embedding)
		} else if len(e.Embedding) != idx.dim {
			return nil, fmt.Errorf("category %q: dimension %d, want %d", e.Name, len(e.Embedding), idx.dim)
		}
		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)
		idx.entries = append(idx.entries, CategoryVector{ID: e.ID, Name: e.Name, Embedding: vec})
	}
	return idx, nil
}

// Len returns the number of indexed categories.
func (idx *CategoryIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

func (idx *CategoryIndex) Dimensions() int { return idx.dim }

// Model names the embedding model the vectors came from. Empty when unknown.
func (idx *CategoryIndex) Model() string {
	if idx == nil {
		return ""
	}
	return idx.model
}

// Categories returns the indexed categories without embeddings, in index order.
func (idx *CategoryIndex) Categories() []CategoryVector {
	out := make([]CategoryVector, 0, idx.Len())
	if idx == nil {
		return out
	}
	for _, e := range idx.entries {
		out = append(out, CategoryVector{ID: e.ID, Name: e.Name})
	}
	return out
}

// Nearest returns the closest category to query and its squared L2
// distance. ok is false for an empty index. Ties keep the earlier entry.
func (idx *CategoryIndex) Nearest(query []float32) (best CategoryVector, distance float64, ok bool, err error) {
	if idx.Len() == 0 {
		return CategoryVector{}, 0, false, nil
	}
	if len(query) != idx.dim {
		return CategoryVector{}, 0, false, fmt.Errorf("query dimension %d, index has %d", len(query), idx.dim)
	}
	distance = math.Inf(1)
	for _, e := range idx.entries {
		d := squaredL2(query, e.Embedding)
		if d < distance {
			best, distance = e, d
		}
	}
	return best, distance, true, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

var indexMagic = [4]byte{'B', 'W', 'C', 'I'}

const indexVersion uint32 = 2

// Upper bounds applied while loading, before anything is allocated.
const (
	maxModelLen   = 1 << 10
	maxNameLen    = 1 << 12
	maxDimensions = 1 << 16
)

// Save writes the index to path atomically: a temp file in the same
// directory is renamed over path, so readers never see a partial index.
//
// Format (little endian): magic "BWCI", version u32, modelLen u32, model
// bytes, dim u32, count u32, then per entry: id i64, nameLen u32, name bytes,
// dim × f32.
func (idx *CategoryIndex) Save(path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".category_index-*")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, indexMagic); err != nil {
		return fmt.Errorf("writing index header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, indexVersion); err != nil {
		return fmt.Errorf("writing index header: %w", err)
	}
	if err := writeString(w, idx.model); err != nil {
		return fmt.Errorf("writing model name: %w", err)
	}
	for _, v := range []uint32{uint32(idx.dim), uint32(len(idx.entries))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing index header: %w", err)
		}
	}
	for _, e := range idx.entries {
		if err := binary.Write(w, binary.LittleEndian, e.ID); err != nil {
			return fmt.Errorf("writing category id: %w", err)
		}
		if err := writeString(w, e.Name); err != nil {
			return fmt.Errorf("writing name: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, e.Embedding); err != nil {
			return fmt.Errorf("writing embedding: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("installing index file: %w", err)
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

var (
	// ErrCorruptIndex is returned by LoadCategoryIndex for files it cannot parse.
	ErrCorruptIndex = errors.New("corrupt category index")
	// ErrStaleIndex is returned for files written by an older format version.
	ErrStaleIndex = errors.New("stale category index")
)

// LoadCategoryIndex reads an index written by Save. A missing file returns an
// error satisfying errors.Is(err, os.ErrNotExist). Header values are checked
// against the file size before any allocation, so a damaged file yields
// ErrCorruptIndex rather than an oversized allocation.
func LoadCategoryIndex(path string) (*CategoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index: %w", err)
	}
	size := uint64(fi.Size())

	r := bufio.NewReader(f)
	var magic [4]byte
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptIndex, err)
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, magic[:])
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptIndex, err)
	}
	switch {
	case version < indexVersion:
		return nil, fmt.Errorf("%w: format version %d", ErrStaleIndex, version)
	case version > indexVersion:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, version)
	}

	model, err := readString(r, maxModelLen)
	if err != nil {
		return nil, fmt.Errorf("%w: model name: %v", ErrCorruptIndex, err)
	}
	var dim, n uint32
	for _, v := range []*uint32{&dim, &n} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptIndex, err)
		}
	}
	if dim > maxDimensions || (dim == 0 && n > 0) {
		return nil, fmt.Errorf("%w: dimension %d", ErrCorruptIndex, dim)
	}
	headerLen := uint64(4 + 4 + 4 + len(model) + 4 + 4)
	minEntryLen := uint64(8 + 4 + 4*dim)
	if size < headerLen || uint64(n)*minEntryLen > size-headerLen {
		return nil, fmt.Errorf("%w: %d entries of dimension %d do not fit in %d bytes", ErrCorruptIndex, n, dim, size)
	}

	entries := make([]CategoryVector, 0, n)
	for i := uint32(0); i < n; i++ {
		var e CategoryVector
		if err := binary.Read(r, binary.LittleEndian, &e.ID); err != nil {
			return nil, fmt.Errorf("%w: entry %d id: %v", ErrCorruptIndex, i, err)
		}
		if e.Name, err = readString(r, maxNameLen); err != nil {
			return nil, fmt.Errorf("%w: entry %d name: %v", ErrCorruptIndex, i, err)
		}
		e.Embedding = make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, e.Embedding); err != nil {
			return nil, fmt.Errorf("%w: entry %d embedding: %v", ErrCorruptIndex, i, err)
		}
		entries = append(entries, e)
	}

	idx, err := NewCategoryIndex(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	idx.model = model
	return idx, nil
}

func readString(r io.Reader, max uint32) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > max {
		return "", fmt.Errorf("length %d exceeds %d", n, max)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
