// Package collection defines the word-collection file format: a directory
// holding a `;`-separated entries.csv and a description.yaml, tracked in a
// remote git repository and resolved through gitsource.
package collection

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/brotherdetjr/deltabanana/faults"
	"github.com/brotherdetjr/deltabanana/gitsource"
	"gopkg.in/yaml.v3"
)

const (
	entriesFile     = "entries.csv"
	descriptionFile = "description.yaml"
	csvSeparator    = ';'
)

// Entry is one studied/native word pair. Pronunciation and Author are
// optional columns.
type Entry struct {
	Studied       string
	Native        string
	Pronunciation string
	Author        string
}

type Collection struct {
	Entries     []Entry
	NativeLang  string
	StudiedLang string
	Topic       string
	Link        gitsource.FileLink
}

type description struct {
	NativeLang  string `yaml:"nativeLang"`
	StudiedLang string `yaml:"studiedLang"`
	Topic       string `yaml:"topic"`
}

// Parse is the gitsource parser for a collection directory.
func Parse(localPath string, link gitsource.FileLink) (any, error) {
	entries, err := readEntries(filepath.Join(localPath, entriesFile))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(localPath, descriptionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, faults.NewTypedError(faults.NotFoundError, "collection has no description.yaml", err)
		}
		return nil, faults.NewTypedError(faults.InternalError, "failed to read collection description", err)
	}
	var descr description
	if err := yaml.Unmarshal(data, &descr); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "failed to decode collection description", err)
	}

	return Collection{
		Entries:     entries,
		NativeLang:  descr.NativeLang,
		StudiedLang: descr.StudiedLang,
		Topic:       descr.Topic,
		Link:        link,
	}, nil
}

// AppendEntries builds the write-back applier: it appends registered Entry
// payloads as csv rows to the collection's entries.csv in registration order.
// baseDir must match the GitSource working-copy root.
func AppendEntries(baseDir string) gitsource.ApplyFunc {
	return func(payloads []any, target gitsource.FileLink) error {
		path := filepath.Join(baseDir, target.DirName(), target.Path, entriesFile)
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return faults.NewTypedError(faults.InternalError, "failed to open entries file for append", err)
		}
		defer file.Close()

		writer := csv.NewWriter(file)
		writer.Comma = csvSeparator
		for _, payload := range payloads {
			entry, ok := payload.(Entry)
			if !ok {
				return faults.NewTypedError(faults.ValidationError, "registered payload is not a collection entry", nil)
			}
			if err := writer.Write([]string{entry.Studied, entry.Native, entry.Pronunciation, entry.Author}); err != nil {
				return faults.NewTypedError(faults.InternalError, "failed to append collection entry", err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return faults.NewTypedError(faults.InternalError, "failed to flush collection entries", err)
		}
		return nil
	}
}

func readEntries(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, faults.NewTypedError(faults.NotFoundError, "collection has no entries.csv", err)
		}
		return nil, faults.NewTypedError(faults.InternalError, "failed to open collection entries", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = csvSeparator
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "failed to parse collection entries", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entry := Entry{}
		for idx, value := range record {
			value = strings.TrimSpace(value)
			switch idx {
			case 0:
				entry.Studied = value
			case 1:
				entry.Native = value
			case 2:
				entry.Pronunciation = value
			case 3:
				entry.Author = value
			}
		}
		if entry.Studied == "" && entry.Native == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
