package entity

// Record is one row returned by a storage, keyed by column name.
type Record map[string]any
