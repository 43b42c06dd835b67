package repository

import (
	"fmt"

	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/vmihailenco/msgpack/v5"
)

// The repository speaks typed records to callers and plain documents to
// the store. msgpack is the bridge: it round-trips time.Time values
// faithfully (unlike JSON, which flattens them to strings), honors the
// same struct tags the Model declares, and doubles as the cache value
// codec so a record serializes identically in both places.

func toDocument[T any](record T) (docstore.Document, error) {
	raw, err := msgpack.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc docstore.Document
	if err := msgpack.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode record into document: %w", err)
	}
	return doc, nil
}

func fromDocument[T any](doc docstore.Document, dest T) error {
	raw, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := msgpack.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode document into record: %w", err)
	}
	return nil
}

// fieldNames lists the keys of a patch or document for log context.
// Values are deliberately excluded so sensitive data never reaches logs.
func fieldNames(doc docstore.Document) []string {
	names := make([]string, 0, len(doc))
	for k := range doc {
		names = append(names, k)
	}
	return names
}
