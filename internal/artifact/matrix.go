package artifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
)

// Формат файла плотной матрицы:
//
//	magic   [8]byte  "OVDRMAT\x00"
//	version uint32   formatVersion
//	dtype   uint32   dtypeFloat32
//	rows    uint64
//	cols    uint64
//	data    rows*cols float32, row-major
//	crc32   uint32   IEEE по data
//
// Все числа little-endian.
const (
	formatVersion uint32 = 1
	dtypeFloat32  uint32 = 1
	headerSize           = 8 + 4 + 4 + 8 + 8
	trailerSize          = 4
)

var matrixMagic = [8]byte{'O', 'V', 'D', 'R', 'M', 'A', 'T', 0}

// Matrix — плотная row-major матрица float32.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix создаёт нулевую матрицу rows x cols.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// Row возвращает строку i без копирования.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At возвращает элемент (i, j).
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Checksum — CRC32 (IEEE) данных матрицы в файловом представлении.
// Совпадает с контрольной суммой в конце файла.
func (m *Matrix) Checksum() uint32 {
	h := crc32.NewIEEE()

	var buf [4096]byte
	n := 0
	for _, v := range m.Data {
		binary.LittleEndian.PutUint32(buf[n:], math.Float32bits(v))
		n += 4
		if n == len(buf) {
			_, _ = h.Write(buf[:])
			n = 0
		}
	}
	_, _ = h.Write(buf[:n])

	return h.Sum32()
}

// Encode записывает матрицу в w.
func (m *Matrix) Encode(w io.Writer) error {
	if m.Rows < 0 || m.Cols < 0 || len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("matrix shape [%d, %d] does not match data length %d", m.Rows, m.Cols, len(m.Data))
	}

	header := make([]byte, headerSize)
	copy(header[0:8], matrixMagic[:])
	binary.LittleEndian.PutUint32(header[8:12], formatVersion)
	binary.LittleEndian.PutUint32(header[12:16], dtypeFloat32)
	binary.LittleEndian.PutUint64(header[16:24], uint64(m.Rows))
	binary.LittleEndian.PutUint64(header[24:32], uint64(m.Cols))

	if _, err := w.Write(header); err != nil {
		return err
	}

	body := make([]byte, 4*len(m.Data))
	for i, v := range m.Data {
		binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(v))
	}

	if _, err := w.Write(body); err != nil {
		return err
	}

	trailer := make([]byte, trailerSize)
	binary.LittleEndian.PutUint32(trailer, crc32.ChecksumIEEE(body))
	_, err := w.Write(trailer)

	return err
}

// DecodeMatrix разбирает матрицу из буфера. Любое нарушение формата — e.ErrArtifactCorrupt.
func DecodeMatrix(buf []byte) (*Matrix, error) {
	const op = "artifact.DecodeMatrix"

	if len(buf) < headerSize+trailerSize {
		return nil, e.Wrap(op, fmt.Errorf("%w: file too short (%d bytes)", e.ErrArtifactCorrupt, len(buf)))
	}

	if !bytes.Equal(buf[0:8], matrixMagic[:]) {
		return nil, e.Wrap(op, fmt.Errorf("%w: bad magic", e.ErrArtifactCorrupt))
	}

	if v := binary.LittleEndian.Uint32(buf[8:12]); v != formatVersion {
		return nil, e.Wrap(op, fmt.Errorf("%w: unsupported format version %d", e.ErrArtifactCorrupt, v))
	}

	if dt := binary.LittleEndian.Uint32(buf[12:16]); dt != dtypeFloat32 {
		return nil, e.Wrap(op, fmt.Errorf("%w: unsupported dtype %d", e.ErrArtifactCorrupt, dt))
	}

	rows := binary.LittleEndian.Uint64(buf[16:24])
	cols := binary.LittleEndian.Uint64(buf[24:32])

	const maxElems = 1 << 31
	if rows > maxElems || cols > maxElems || (cols != 0 && rows > maxElems/cols) {
		return nil, e.Wrap(op, fmt.Errorf("%w: shape [%d, %d] too large", e.ErrArtifactCorrupt, rows, cols))
	}

	n := int(rows * cols)
	body := buf[headerSize : len(buf)-trailerSize]
	if len(body) != 4*n {
		return nil, e.Wrap(op, fmt.Errorf("%w: shape [%d, %d] needs %d data bytes, got %d",
			e.ErrArtifactCorrupt, rows, cols, 4*n, len(body)))
	}

	if sum := binary.LittleEndian.Uint32(buf[len(buf)-trailerSize:]); sum != crc32.ChecksumIEEE(body) {
		return nil, e.Wrap(op, fmt.Errorf("%w: checksum mismatch", e.ErrArtifactCorrupt))
	}

	m := NewMatrix(int(rows), int(cols))
	for i := range m.Data {
		v := math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, e.Wrap(op, fmt.Errorf("%w: non-finite value at element %d", e.ErrArtifactCorrupt, i))
		}
		m.Data[i] = v
	}

	return m, nil
}

// ReadMatrixFile читает матрицу с диска.
// Отсутствующий файл — e.ErrArtifactMissing, повреждённый — e.ErrArtifactCorrupt.
func ReadMatrixFile(path string) (*Matrix, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", e.ErrArtifactMissing, path)
		}
		return nil, e.Wrap(path, err)
	}

	m, err := DecodeMatrix(buf)
	if err != nil {
		return nil, e.Wrap(path, err)
	}

	return m, nil
}

// WriteMatrixFile атомарно записывает матрицу: временный файл в той же директории + rename.
func WriteMatrixFile(path string, m *Matrix) error {
	return writeFileAtomic(path, m.Encode)
}

func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return e.Wrap(path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return e.Wrap(path, err)
	}
	tmpName := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return e.Wrap(path, err)
	}

	if err := tmp.Sync(); err != nil {
		return e.Wrap(path, err)
	}

	if err := tmp.Close(); err != nil {
		return e.Wrap(path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return e.Wrap(path, err)
	}

	ok = true
	return nil
}
