// Package archive moves region snapshots in and out of portable files: a
// zstd stream holding a JSON header line followed by one JSON row per line.
package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/lazypower/decayregion/internal/snapshot"
)

// Version is the archive format written by Export.
const Version = 1

// Header describes an archive.
type Header struct {
	Version int    `json:"version"`
	Region  string `json:"region"`
	Rows    int    `json:"rows"`
}

// ErrVersion is returned for archives written by an unknown format version.
var ErrVersion = errors.New("unsupported archive version")

// Export writes rows for regionKey to path, replacing any existing file.
func Export(path, regionKey string, rows []snapshot.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := write(f, Header{Version: Version, Region: regionKey, Rows: len(rows)}, rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

func write(w io.Writer, h Header, rows []snapshot.Row) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	je := json.NewEncoder(bw)

	if err := je.Encode(h); err != nil {
		enc.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := je.Encode(row); err != nil {
			enc.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// Import reads an archive written by Export.
func Import(path string) (Header, []snapshot.Row, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	jd := json.NewDecoder(bufio.NewReaderSize(dec, 256*1024))
	if err := jd.Decode(&h); err != nil {
		return h, nil, fmt.Errorf("read header: %w", err)
	}
	if h.Version != Version {
		return h, nil, fmt.Errorf("archive %s version %d: %w", path, h.Version, ErrVersion)
	}

	rows := make([]snapshot.Row, 0, h.Rows)
	for {
		var row snapshot.Row
		err := jd.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return h, nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	if len(rows) != h.Rows {
		return h, nil, fmt.Errorf("archive %s: header says %d rows, found %d", path, h.Rows, len(rows))
	}
	return h, rows, nil
}
