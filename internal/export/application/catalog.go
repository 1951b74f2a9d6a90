package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	export "quarterhour-export/internal/export/domain"
)

// ColumnCatalog resolves the CSV columns of a selection.
type ColumnCatalog struct {
	source MeasurementSource
	logger *log.Logger
}

// NewColumnCatalog constructs a catalog.
func NewColumnCatalog(source MeasurementSource, logger *log.Logger) (*ColumnCatalog, error) {
	if source == nil {
		return nil, errors.New("column catalog: nil source")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ColumnCatalog{source: source, logger: logger}, nil
}

// Resolve issues one distinct-POD query for the selection range. The column
// order is lexicographic on the identifier. An empty result is ErrNoColumns.
func (c *ColumnCatalog) Resolve(ctx context.Context, sel export.Selection) (export.ColumnSet, error) {
	pods, err := c.source.DistinctPODs(ctx, sel, sel.StartKey(), sel.EndKey())
	if err != nil {
		return export.ColumnSet{}, fmt.Errorf("distinct pods: %w", err)
	}
	columns, err := export.NewColumnSet(pods)
	if err != nil {
		return export.ColumnSet{}, err
	}
	c.logger.Printf("column catalog resolved: selection=%s pods=%d", sel.Name(), columns.Len())
	return columns, nil
}
