package acoustic

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

var (
	ErrToolNotFound  = errors.New("opensmile not found")
	ErrToolExecution = errors.New("opensmile execution failed")
	ErrEmptyOutput   = errors.New("opensmile produced no feature rows")
)

// openSMILE low-level descriptor columns mapped to feature fields.
const (
	colJitter   = "jitterLocal_sma"
	colShimmer  = "shimmerLocal_sma"
	colLoudness = "pcm_intensity_sma"
	colVoicing  = "voicingFinalUnclipped_sma"
)

// OpenSMILE runs SMILExtract with a fixed config and parses its CSV output.
type OpenSMILE struct {
	binary  string
	config  string
	tempDir string
}

// NewOpenSMILE creates an extractor for the given executable and config file.
// CSV scratch files are created in tempDir (os.TempDir when empty).
func NewOpenSMILE(binary, config, tempDir string) *OpenSMILE {
	return &OpenSMILE{binary: binary, config: config, tempDir: tempDir}
}

// Extract runs the tool against wavPath and returns the first frame's features.
func (o *OpenSMILE) Extract(ctx context.Context, wavPath string) (Features, error) {
	if !isFile(o.binary) {
		return Features{}, fmt.Errorf("%w: executable %q", ErrToolNotFound, o.binary)
	}
	if !isFile(o.config) {
		return Features{}, fmt.Errorf("%w: config %q", ErrToolNotFound, o.config)
	}

	tmp, err := os.CreateTemp(o.tempDir, "smile-*.csv")
	if err != nil {
		return Features{}, fmt.Errorf("create csv: %w", err)
	}
	csvPath := tmp.Name()
	tmp.Close()
	defer os.Remove(csvPath)

	cmd := exec.CommandContext(ctx, o.binary, "-C", o.config, "-I", wavPath, "-O", csvPath)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err = cmd.Run(); err != nil {
		return Features{}, fmt.Errorf("%w: %v: %s", ErrToolExecution, err, strings.TrimSpace(output.String()))
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return Features{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads openSMILE CSV output (comma or semicolon separated) and
// extracts the known columns from the first data row. Missing, non-numeric
// or non-finite cells read as 0.
func ParseCSV(r io.Reader) (Features, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Features{}, fmt.Errorf("read csv: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return Features{}, ErrEmptyOutput
	}
	if err != nil {
		return Features{}, fmt.Errorf("parse csv header: %w", err)
	}
	row, err := reader.Read()
	if err == io.EOF {
		return Features{}, ErrEmptyOutput
	}
	if err != nil {
		return Features{}, fmt.Errorf("parse csv row: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.Trim(strings.TrimSpace(name), `'"`)] = i
	}
	cell := func(name string) float64 {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return 0
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}

	return Features{
		Jitter:   cell(colJitter),
		Shimmer:  cell(colShimmer),
		Loudness: cell(colLoudness),
		Voicing:  cell(colVoicing),
	}, nil
}

func sniffDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
