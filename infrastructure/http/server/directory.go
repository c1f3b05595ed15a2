package server

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/blugelabs/bluge"
)

const (
	idField   = "_id"
	nameField = "name_lc"
)

// Directory indexes registered names for substring search.
// The index lives in memory only; it is rebuilt as clients register.
type Directory struct {
	writer *bluge.Writer
}

func NewDirectory() (*Directory, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("open directory index: %w", err)
	}
	return &Directory{writer: writer}, nil
}

func (d *Directory) Index(name string) error {
	doc := bluge.NewDocument(name).
		AddField(bluge.NewKeywordField(nameField, strings.ToLower(name)))
	return d.writer.Update(doc.ID(), doc)
}

// Search returns up to limit names containing query, case-insensitively,
// sorted. An empty query matches every name.
func (d *Directory) Search(ctx context.Context, query string, limit int) ([]string, error) {
	reader, err := d.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open directory reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	var q bluge.Query = bluge.NewMatchAllQuery()
	// Wildcard metacharacters are stripped from user input.
	term := strings.ToLower(strings.NewReplacer("*", "", "?", "").Replace(strings.TrimSpace(query)))
	if term != "" {
		q = bluge.NewWildcardQuery("*" + term + "*").SetField(nameField)
	}

	it, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("search directory: %w", err)
	}

	var names []string
	match, err := it.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				names = append(names, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = it.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate directory: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (d *Directory) Close() error {
	return d.writer.Close()
}
