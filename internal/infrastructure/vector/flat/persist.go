package flat

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/kirillkom/multimodal-rag/internal/core/domain"
)

const (
	vectorMagic     = "MMRAGVEC"
	formatVersion   = 1
	VectorsFileName = "vectors.idx"
	MetaFileName    = "metadata.json"
)

type metadataFile struct {
	Version   int            `json:"version"`
	Count     int            `json:"count"`
	Dimension int            `json:"dimension"`
	Chunks    []domain.Chunk `json:"chunks"`
}

// Vector file layout: magic (8), version (4), dimension (4), count (4), then
// count*dimension little-endian float32 values.
func writeVectors(w io.Writer, x *Index) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(vectorMagic); err != nil {
		return err
	}
	header := []uint32{formatVersion, uint32(x.dim), uint32(len(x.vectors))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return err
	}
	buf := make([]byte, 4*x.dim)
	for _, vector := range x.vectors {
		for i, v := range vector {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readVectors(r io.Reader) (int, [][]float32, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(vectorMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return 0, nil, fmt.Errorf("read vector header: %w", err)
	}
	if string(magic) != vectorMagic {
		return 0, nil, errors.New("not a vector file")
	}
	var header [3]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return 0, nil, fmt.Errorf("read vector header: %w", err)
	}
	if header[0] != formatVersion {
		return 0, nil, fmt.Errorf("unsupported vector file version %d", header[0])
	}

	dim, count := int(header[1]), int(header[2])
	buf := make([]byte, 4*dim)
	vectors := make([][]float32, count)
	for i := range vectors {
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vector := make([]float32, dim)
		for j := range vector {
			vector[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors[i] = vector
	}
	return dim, vectors, nil
}

// writeFileAtomic writes through a temp file in the target directory and renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func writeMetadata(w io.Writer, x *Index) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(metadataFile{
		Version:   formatVersion,
		Count:     len(x.chunks),
		Dimension: x.dim,
		Chunks:    x.chunks,
	})
}

func readMetadata(r io.Reader) (metadataFile, error) {
	var meta metadataFile
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return metadataFile{}, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Version != formatVersion {
		return metadataFile{}, fmt.Errorf("unsupported metadata version %d", meta.Version)
	}
	for i := range meta.Chunks {
		modality, err := domain.ParseModality(string(meta.Chunks[i].Modality))
		if err != nil {
			return metadataFile{}, fmt.Errorf("chunk %d: %w", i, err)
		}
		meta.Chunks[i].Modality = modality
	}
	return meta, nil
}
