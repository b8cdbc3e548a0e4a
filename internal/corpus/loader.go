package corpus

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"gopkg.in/yaml.v3"
)

// FileFormat represents supported seed file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
	FormatJSONL   FileFormat = "jsonl"
	FormatYAML    FileFormat = "yaml"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported seed file format: %s", filename)
	}
}

// LoadFile reads seed entries from a CSV, Parquet, JSON, JSON Lines or YAML
// file and validates every entry. Entries keep file order.
func LoadFile(path string) ([]SeedEntry, error) {
	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, err
	}

	var entries []SeedEntry
	switch format {
	case FormatParquet:
		entries, err = readParquet(path)
	default:
		file, openErr := os.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open seed file: %w", openErr)
		}
		defer file.Close()
		entries, err = Read(file, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s seeds from %s: %w", format, path, err)
	}

	return entries, nil
}

// Read decodes seed entries in a streaming format. Parquet needs random
// access and is only supported through LoadFile.
func Read(r io.Reader, format FileFormat) ([]SeedEntry, error) {
	var (
		entries []SeedEntry
		err     error
	)
	switch format {
	case FormatCSV:
		entries, err = readCSV(r)
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&entries)
	case FormatJSONL:
		entries, err = readJSONL(r)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&entries)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return nil, fmt.Errorf("unsupported stream format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	for i := range entries {
		normalize(&entries[i])
		if err := entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// normalize fills tool_count from the tool list when it was omitted.
func normalize(e *SeedEntry) {
	e.Text = strings.TrimSpace(e.Text)
	if e.ToolCount == 0 {
		e.ToolCount = len(e.Tools)
	}
}

// readCSV expects a header row naming text, tool_count, privacy, complexity,
// tools and optionally tier. Tools are separated by '|' or ';'.
func readCSV(r io.Reader) ([]SeedEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["text"]; !ok {
		return nil, fmt.Errorf("CSV header has no text column")
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []SeedEntry
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		entry := SeedEntry{
			Text: field(record, "text"),
			Tier: field(record, "tier"),
		}
		if v := field(record, "tool_count"); v != "" {
			if entry.ToolCount, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("row %d: invalid tool_count %q", row, v)
			}
		}
		if v := field(record, "privacy"); v != "" {
			if entry.Privacy, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("row %d: invalid privacy %q", row, v)
			}
		}
		if v := field(record, "complexity"); v != "" {
			if entry.Complexity, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("row %d: invalid complexity %q", row, v)
			}
		}
		if v := field(record, "tools"); v != "" {
			for _, tool := range strings.FieldsFunc(v, func(r rune) bool { return r == '|' || r == ';' }) {
				if tool = strings.TrimSpace(tool); tool != "" {
					entry.Tools = append(entry.Tools, tool)
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func readJSONL(r io.Reader) ([]SeedEntry, error) {
	var entries []SeedEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entry SeedEntry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func readParquet(path string) ([]SeedEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var entries []SeedEntry
	for {
		var entry SeedEntry
		err := reader.Read(&entry)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record %d: %w", len(entries), err)
		}
		entries = append(entries, entry)
	}

	for i := range entries {
		normalize(&entries[i])
		if err := entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

// WriteParquet writes entries to path, overwriting it.
func WriteParquet(path string, entries []SeedEntry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create Parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[SeedEntry](file)
	if _, err := writer.Write(entries); err != nil {
		return fmt.Errorf("failed to write Parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}
