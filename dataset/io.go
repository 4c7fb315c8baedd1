package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// Load reads a table from a .csv or .xlsx file. The first row is the header.
func Load(path string) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, errors.NewDataAccessError("Load", path, "unsupported file extension, expected .csv or .xlsx", nil)
	}
}

func loadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataAccessError("Load", path, "cannot open file", err)
	}
	defer file.Close()

	return ReadCSV(file, path)
}

// ReadCSV reads a comma separated table. source is used in error messages.
func ReadCSV(r io.Reader, source string) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewDataAccessError("Load", source, "malformed csv", err)
	}
	return fromRecords(records, source)
}

func loadXLSX(path string) (*Frame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewDataAccessError("Load", path, "cannot open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewDataAccessError("Load", path, "workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewDataAccessError("Load", path, "cannot read sheet '"+sheets[0]+"'", err)
	}
	if len(rows) > 0 {
		// excelize trims trailing empty cells; pad rows back to the header width.
		width := len(rows[0])
		for i := 1; i < len(rows); i++ {
			for len(rows[i]) < width {
				rows[i] = append(rows[i], "")
			}
		}
	}
	return fromRecords(rows, path)
}

func fromRecords(records [][]string, source string) (*Frame, error) {
	// skip fully empty trailing lines
	for len(records) > 0 && isBlank(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return nil, errors.NewDataAccessError("Load", source, "file is empty", nil)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		// strip a UTF-8 byte order mark written by spreadsheet exports
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	frame := &Frame{Source: source, Header: header, Rows: records[1:]}
	if err := frame.validate(); err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, errors.NewDataAccessError("Load", source, "file has a header but no rows", nil)
	}
	return frame, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes the frame with its header to path, creating parent directories.
func WriteCSV(f *Frame, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewDataAccessError("WriteCSV", path, "cannot create directory", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.NewDataAccessError("WriteCSV", path, "cannot create file", err)
	}
	if err := encodeCSV(f, file); err != nil {
		file.Close()
		return errors.NewDataAccessError("WriteCSV", path, "cannot write rows", err)
	}
	if err := file.Close(); err != nil {
		return errors.NewDataAccessError("WriteCSV", path, "cannot close file", err)
	}
	return nil
}

// EncodeCSV writes the frame with its header to w.
func EncodeCSV(f *Frame, w io.Writer) error {
	if err := encodeCSV(f, w); err != nil {
		return errors.NewDataAccessError("EncodeCSV", f.Source, "cannot write rows", err)
	}
	return nil
}

func encodeCSV(f *Frame, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header); err != nil {
		return err
	}
	// WriteAll flushes.
	return cw.WriteAll(f.Rows)
}
