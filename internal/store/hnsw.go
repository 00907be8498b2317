package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex wraps an HNSW graph keyed by uint64 with a string id
// mapping layer. Deletion is lazy: removing a chunk orphans its graph
// node by dropping the id mapping, and orphans are swept out on the
// next full rebuild.
type VectorIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dim     int
	dirty   bool
}

type hnswConfig struct {
	M         int
	Ml        float64
	EfSearch  int
	Dimension int
}

type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  hnswConfig
}

func defaultHNSWConfig(dim int) hnswConfig {
	return hnswConfig{M: 16, Ml: 0.25, EfSearch: 20, Dimension: dim}
}

func newGraph(cfg hnswConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.Ml = cfg.Ml
	g.EfSearch = cfg.EfSearch
	return g
}

// NewVectorIndex creates an empty index for vectors of dimension dim.
func NewVectorIndex(dim int) *VectorIndex {
	return &VectorIndex{
		graph:  newGraph(defaultHNSWConfig(dim)),
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		dim:    dim,
	}
}

// Add inserts or replaces a vector under id.
func (v *VectorIndex) Add(id string, vec []float32) error {
	if v.dim > 0 && len(vec) != v.dim {
		return fmt.Errorf("vector %s has dimension %d, want %d", id, len(vec), v.dim)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key, ok := v.idMap[id]
	if !ok {
		key = v.nextKey
		v.nextKey++
		v.idMap[id] = key
		v.keyMap[key] = id
	}
	v.graph.Add(hnsw.MakeNode(key, vec))
	v.dirty = true
	return nil
}

// Remove orphans the node for id. The graph node stays until the next
// rebuild; searches skip keys without a mapping.
func (v *VectorIndex) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, ok := v.idMap[id]
	if !ok {
		return
	}
	delete(v.idMap, id)
	delete(v.keyMap, key)
	v.dirty = true
}

// RemoveDocument orphans every vector belonging to docID.
func (v *VectorIndex) RemoveDocument(docID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for id, key := range v.idMap {
		d, _, err := ParseVectorID(id)
		if err == nil && d == docID {
			delete(v.idMap, id)
			delete(v.keyMap, key)
			v.dirty = true
		}
	}
}

// Len returns the number of live (non-orphaned) vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Search returns up to k nearest live vectors. Scores are cosine
// similarity. Over-fetches to compensate for orphaned nodes.
func (v *VectorIndex) Search(vec []float32, k int) ([]VectorHit, error) {
	if v.dim > 0 && len(vec) != v.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(vec), v.dim)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.idMap) == 0 {
		return nil, nil
	}

	fetch := k * 2
	if fetch < k+8 {
		fetch = k + 8
	}
	nodes := v.graph.Search(vec, fetch)

	hits := make([]VectorHit, 0, k)
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			continue // orphaned by a delete
		}
		docID, idx, err := ParseVectorID(id)
		if err != nil {
			continue
		}
		hits = append(hits, VectorHit{
			DocumentID: docID,
			ChunkIndex: idx,
			Score:      1 - float64(hnsw.CosineDistance(vec, node.Value)),
			IsFilename: idx == FilenameChunkIndex,
		})
		if len(hits) == k {
			break
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// ContainsExactly reports whether the live id set matches ids.
func (v *VectorIndex) ContainsExactly(ids []string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(ids) != len(v.idMap) {
		return false
	}
	for _, id := range ids {
		if _, ok := v.idMap[id]; !ok {
			return false
		}
	}
	return true
}

// Rebuild replaces the index contents from scratch, dropping orphans.
func (v *VectorIndex) Rebuild(ids []string, vecs [][]float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.graph = newGraph(defaultHNSWConfig(v.dim))
	v.idMap = make(map[string]uint64, len(ids))
	v.keyMap = make(map[uint64]string, len(ids))
	v.nextKey = 0

	for i, id := range ids {
		if v.dim > 0 && len(vecs[i]) != v.dim {
			return fmt.Errorf("vector %s has dimension %d, want %d", id, len(vecs[i]), v.dim)
		}
		key := v.nextKey
		v.nextKey++
		v.idMap[id] = key
		v.keyMap[key] = id
		v.graph.Add(hnsw.MakeNode(key, vecs[i]))
	}
	v.dirty = true
	return nil
}

// Save writes the graph and its metadata sidecar atomically.
func (v *VectorIndex) Save(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create vector index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := v.graph.Export(w); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to export vector index: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	meta := hnswMetadata{
		IDMap:   v.idMap,
		NextKey: v.nextKey,
		Config:  hnswConfig{M: v.graph.M, Ml: v.graph.Ml, EfSearch: v.graph.EfSearch, Dimension: v.dim},
	}
	metaTmp := path + ".meta.tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to create vector metadata file: %w", err)
	}
	if err := gob.NewEncoder(mf).Encode(meta); err != nil {
		_ = mf.Close()
		_ = os.Remove(tmp)
		_ = os.Remove(metaTmp)
		return fmt.Errorf("failed to encode vector metadata: %w", err)
	}
	if err := mf.Close(); err != nil {
		_ = os.Remove(tmp)
		_ = os.Remove(metaTmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		_ = os.Remove(metaTmp)
		return err
	}
	if err := os.Rename(metaTmp, path+".meta"); err != nil {
		_ = os.Remove(metaTmp)
		return err
	}
	v.dirty = false
	return nil
}

// Dirty reports whether the in-memory index has unsaved changes.
func (v *VectorIndex) Dirty() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dirty
}

// LoadVectorIndex reads a saved index. A missing or unreadable file
// returns (nil, false, nil): the caller rebuilds from sqlite.
func LoadVectorIndex(path string, dim int) (*VectorIndex, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	mf, err := os.Open(path + ".meta")
	if err != nil {
		return nil, false, nil // sidecar lost, rebuild
	}
	defer func() { _ = mf.Close() }()

	var meta hnswMetadata
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return nil, false, nil
	}
	if dim > 0 && meta.Config.Dimension != dim {
		// Model changed since the save; stale vectors are unusable.
		return nil, false, nil
	}

	graph := newGraph(meta.Config)
	if err := graph.Import(bufio.NewReader(f)); err != nil {
		return nil, false, nil
	}

	v := &VectorIndex{
		graph:   graph,
		idMap:   meta.IDMap,
		keyMap:  make(map[uint64]string, len(meta.IDMap)),
		nextKey: meta.NextKey,
		dim:     meta.Config.Dimension,
	}
	if v.idMap == nil {
		v.idMap = make(map[string]uint64)
	}
	for id, key := range v.idMap {
		v.keyMap[key] = id
	}
	return v, true, nil
}
