package store

// ColumnType tells adapters without a native type system how to store a column.
type ColumnType int

// Column types.
const (
	ColInt ColumnType = iota
	ColText
	ColBool
	ColFloat
	ColJSON
	ColTime
)

// TableSpec describes a table's columns and unique keys.
type TableSpec struct {
	Columns map[string]ColumnType
	Unique  [][]string
}

// Type returns the column type, defaulting to text for unknown columns.
func (s TableSpec) Type(col string) ColumnType {
	if t, ok := s.Columns[col]; ok {
		return t
	}
	return ColText
}

//nolint:gochecknoglobals // Static schema description.
var tableSpecs = map[Table]TableSpec{
	TableAtoms: {Columns: map[string]ColumnType{
		"id": ColInt, "title": ColText, "description": ColText, "content_type": ColText,
		"media_source_link": ColText, "link": ColText, "creator_name": ColText,
		"tags": ColJSON, "metadata": ColJSON, "flag_for_deletion": ColBool, "hidden": ColBool,
		"created_at": ColTime, "updated_at": ColTime,
	}},
	TableTags: {
		Columns: map[string]ColumnType{
			"id": ColInt, "name": ColText, "count": ColInt, "is_private": ColBool,
			"category_id": ColInt, "created_at": ColTime,
		},
		Unique: [][]string{{"name"}},
	},
	TableCategories: {Columns: map[string]ColumnType{
		"id": ColInt, "name": ColText, "description": ColText, "is_private": ColBool, "created_at": ColTime,
	}},
	TableCreators: {Columns: map[string]ColumnType{
		"id": ColInt, "name": ColText, "count": ColInt, "link_1": ColText, "link_2": ColText,
		"link_3": ColText, "is_favorite": ColBool, "created_at": ColTime,
	}},
	TableCategoryTags: {Columns: map[string]ColumnType{
		"id": ColInt, "category_id": ColInt, "tag_id": ColInt,
	}},
	TableCreatorTags: {Columns: map[string]ColumnType{
		"id": ColInt, "creator_id": ColInt, "tag_id": ColInt,
	}},
	TableCreatorAtoms: {Columns: map[string]ColumnType{
		"id": ColInt, "creator_id": ColInt, "atom_id": ColInt,
	}},
	TableAtomRelationships: {
		Columns: map[string]ColumnType{
			"id": ColInt, "parent_atom_id": ColInt, "child_atom_id": ColInt, "created_at": ColTime,
		},
		Unique: [][]string{{"parent_atom_id", "child_atom_id"}},
	},
	TableSettings: {
		Columns: map[string]ColumnType{"key": ColText, "value": ColJSON},
		Unique:  [][]string{{"key"}},
	},
}

// Spec returns the description of table.
func Spec(table Table) (TableSpec, bool) {
	s, ok := tableSpecs[table]
	return s, ok
}

// Tables lists every known table.
func Tables() []Table {
	return []Table{
		TableAtoms, TableTags, TableCategories, TableCreators, TableCategoryTags,
		TableCreatorTags, TableCreatorAtoms, TableAtomRelationships, TableSettings,
	}
}

// HasID reports whether the table uses a numeric id primary key.
func HasID(table Table) bool {
	return table != TableSettings
}
