package vectordb

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
)

// The durable snapshot is a file pair: a binary index artifact holding the
// normalized vectors, and a bbolt metadata artifact holding the parallel
// text/metadata arrays plus the recorded dimension. Both are rewritten in
// full after every successful mutation.
const (
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.db"
)

// vectors.bin layout:
//   0..7   magic "DQAVEC01"
//   8..15  dimension (uint64 LE)
//   16..23 count (uint64 LE)
//   24..   count rows of dimension float32 (LE)
var vectorsMagic = [8]byte{'D', 'Q', 'A', 'V', 'E', 'C', '0', '1'}

var (
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
	keyDimension = []byte("dimension")
)

// chunkRecord is the per-position value stored in the chunks bucket,
// keyed by big-endian position so cursor order equals insertion order.
type chunkRecord struct {
	Text     string            `json:"text"`
	Metadata entities.Metadata `json:"metadata"`
}

type snapshotState struct {
	dim       int
	vectors   [][]float32
	texts     []string
	metadatas []entities.Metadata
}

type snapshot struct {
	vectorsPath  string
	metadataPath string
}

func newSnapshot(dataPath string) *snapshot {
	return &snapshot{
		vectorsPath:  filepath.Join(dataPath, vectorsFile),
		metadataPath: filepath.Join(dataPath, metadataFile),
	}
}

// save writes both artifacts. The vectors file is written to a temp file
// and renamed so a crash mid-write cannot leave a torn index artifact.
func (s *snapshot) save(dim int, vectors [][]float32, texts []string, metadatas []entities.Metadata) error {
	if err := s.writeVectors(dim, vectors); err != nil {
		return fmt.Errorf("writing index artifact: %w", err)
	}
	if err := s.writeMetadata(dim, texts, metadatas); err != nil {
		return fmt.Errorf("writing metadata artifact: %w", err)
	}
	return nil
}

func (s *snapshot) writeVectors(dim int, vectors [][]float32) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.vectorsPath), ".vectors-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(vectorsMagic[:]); err != nil {
		tmp.Close()
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(dim)); err != nil {
		tmp.Close()
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(vectors))); err != nil {
		tmp.Close()
		return err
	}
	for _, v := range vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.vectorsPath)
}

func (s *snapshot) writeMetadata(dim int, texts []string, metadatas []entities.Metadata) error {
	db, err := bolt.Open(s.metadataPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketChunks, bucketMeta} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}

		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		if err := meta.Put(keyDimension, u64be(uint64(dim))); err != nil {
			return err
		}

		chunks, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}
		for i := range texts {
			val, err := json.Marshal(chunkRecord{Text: texts[i], Metadata: metadatas[i]})
			if err != nil {
				return err
			}
			if err := chunks.Put(u64be(uint64(i)), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// load reads the snapshot, treating any failure as an empty store. The
// store favors starting fresh over crashing on corrupt state.
func (s *snapshot) load() snapshotState {
	state, err := s.read()
	if err != nil {
		log.Printf("[WARN] loading snapshot: %v (starting with an empty store)", err)
		return snapshotState{}
	}
	return state
}

func (s *snapshot) read() (snapshotState, error) {
	var state snapshotState

	if _, err := os.Stat(s.metadataPath); err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, err
	}

	if err := s.readMetadata(&state); err != nil {
		return snapshotState{}, fmt.Errorf("reading metadata artifact: %w", err)
	}

	// Only load vectors when there is text to pair them with; a metadata
	// artifact with no chunks means the index artifact is stale or absent.
	if len(state.texts) == 0 {
		return state, nil
	}

	if err := s.readVectors(&state); err != nil {
		return snapshotState{}, fmt.Errorf("reading index artifact: %w", err)
	}
	return state, nil
}

func (s *snapshot) readMetadata(state *snapshotState) error {
	db, err := bolt.Open(s.metadataPath, 0600, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(func(tx *bolt.Tx) error {
		if meta := tx.Bucket(bucketMeta); meta != nil {
			if raw := meta.Get(keyDimension); len(raw) == 8 {
				state.dim = int(binary.BigEndian.Uint64(raw))
			}
		}

		chunks := tx.Bucket(bucketChunks)
		if chunks == nil {
			return nil
		}
		return chunks.ForEach(func(_, val []byte) error {
			var rec chunkRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			state.texts = append(state.texts, rec.Text)
			state.metadatas = append(state.metadatas, rec.Metadata)
			return nil
		})
	})
}

func (s *snapshot) readVectors(state *snapshotState) error {
	f, err := os.Open(s.vectorsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return err
	}
	if magic != vectorsMagic {
		return errors.New("bad magic in vectors file")
	}

	var dim, count uint64
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	if int(dim) != state.dim {
		return fmt.Errorf("artifacts disagree on dimension: index %d, metadata %d", dim, state.dim)
	}
	if int(count) != len(state.texts) {
		return fmt.Errorf("artifacts disagree on size: %d vectors, %d texts", count, len(state.texts))
	}

	state.vectors = make([][]float32, count)
	for i := range state.vectors {
		row := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		state.vectors[i] = row
	}
	return nil
}

// delete removes both artifacts. Missing files are not an error.
func (s *snapshot) delete() error {
	for _, path := range []string{s.vectorsPath, s.metadataPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func u64be(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
