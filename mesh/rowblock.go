package mesh

// FieldRow is one numbered record of a result block. ID may name a node or an
// element depending on the block.
type FieldRow struct {
	ID         int       `json:"id"`
	Components []float64 `json:"components"`
}

// RowBlock is a provisional group of contiguous data rows sharing the nearest
// preceding header or metadata line.
type RowBlock struct {
	Header             string     // Plain header text, or the metadata field name
	Names              []string   // Component names from metadata rows, may be empty
	DeclaredComponents int        // Component count from metadata, 0 when absent
	FromMetadata       bool       // Header came from a metadata row
	Rows               []FieldRow // Never empty for an emitted block
}

// NumComponents returns the widest component count of any row
func (b *RowBlock) NumComponents() (n int) {
	for _, r := range b.Rows {
		if len(r.Components) > n {
			n = len(r.Components)
		}
	}
	return
}
