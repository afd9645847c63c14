package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"recipe-substitutes/internal/core/vocab"
	"recipe-substitutes/internal/pkg/common"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var magic = [8]byte{'S', 'U', 'B', 'F', 'S', 'N', 'P', '1'}

// maxHeaderSize 標頭大小上限，防止讀入損壞檔案時配置過大記憶體
const maxHeaderSize = 256 << 20

// Header 快照標頭
type Header struct {
	RunID      string    `json:"run_id"`
	Method     string    `json:"method"`
	CreatedAt  time.Time `json:"created_at"`
	Recipes    int       `json:"recipes"`
	Vocabulary []string  `json:"vocabulary"`
}

// Snapshot 關聯矩陣與產生它的詞彙表
type Snapshot struct {
	Header      Header
	Association *mat.Dense
}

// Vocab 由標頭重建詞彙表
func (s *Snapshot) Vocab() *vocab.Vocabulary {
	return vocab.New(s.Header.Vocabulary)
}

// Write 以 zstd 壓縮寫出快照
func Write(w io.Writer, s *Snapshot) error {
	r, c := s.Association.Dims()
	if r != len(s.Header.Vocabulary) || c != r {
		return common.NewInvalidInputError(common.StageSnapshot,
			fmt.Sprintf("association matrix is %d×%d but vocabulary has %d entries", r, c, len(s.Header.Vocabulary)))
	}

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}

	header, err := json.Marshal(s.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("failed to marshal snapshot header: %w", err)
	}
	if err := binary.Write(enc, binary.LittleEndian, uint32(len(header))); err != nil {
		enc.Close()
		return err
	}
	if _, err := enc.Write(header); err != nil {
		enc.Close()
		return err
	}
	if _, err := s.Association.MarshalBinaryTo(enc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read 讀取快照
func Read(r io.Reader) (*Snapshot, error) {
	var got [8]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return nil, common.NewIOError(common.StageSnapshot, "read magic", err)
	}
	if !bytes.Equal(got[:], magic[:]) {
		return nil, common.NewInvalidInputError(common.StageSnapshot, "not a snapshot file")
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, common.NewIOError(common.StageSnapshot, "open zstd stream", err)
	}
	defer dec.Close()

	var size uint32
	if err := binary.Read(dec, binary.LittleEndian, &size); err != nil {
		return nil, common.NewIOError(common.StageSnapshot, "read header size", err)
	}
	if size > maxHeaderSize {
		return nil, common.NewInvalidInputError(common.StageSnapshot, fmt.Sprintf("header size %d too large", size))
	}
	header := make([]byte, size)
	if _, err := io.ReadFull(dec, header); err != nil {
		return nil, common.NewIOError(common.StageSnapshot, "read header", err)
	}

	s := &Snapshot{Association: &mat.Dense{}}
	if err := json.Unmarshal(header, &s.Header); err != nil {
		return nil, common.NewIOError(common.StageSnapshot, "parse header", err)
	}
	if _, err := s.Association.UnmarshalBinaryFrom(dec); err != nil {
		return nil, common.NewIOError(common.StageSnapshot, "read matrix", err)
	}

	r2, c2 := s.Association.Dims()
	if r2 != len(s.Header.Vocabulary) || c2 != r2 {
		return nil, common.NewInvalidInputError(common.StageSnapshot,
			fmt.Sprintf("snapshot matrix is %d×%d but vocabulary has %d entries", r2, c2, len(s.Header.Vocabulary)))
	}
	return s, nil
}

// Save 寫入快照檔
func Save(path string, s *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.NewIOError(common.StageSnapshot, "create dir for "+path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return common.NewIOError(common.StageSnapshot, "create "+path, err)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, s); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return common.NewIOError(common.StageSnapshot, "flush "+path, err)
	}
	if err := f.Close(); err != nil {
		return common.NewIOError(common.StageSnapshot, "close "+path, err)
	}
	common.LogInfo("快照已儲存",
		zap.String("path", path),
		zap.String("run_id", s.Header.RunID),
		zap.Int("vocabulary", len(s.Header.Vocabulary)),
	)
	return nil
}

// Load 讀取快照檔
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewIOError(common.StageSnapshot, "open "+path, err)
	}
	defer f.Close()

	s, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	common.LogDebug("快照已載入",
		zap.String("path", path),
		zap.String("run_id", s.Header.RunID),
	)
	return s, nil
}
