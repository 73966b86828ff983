// Package db holds the SQL shared by the relational registry stores: column
// lists, lookup queries and the conversion between rows and records.
//
// The PostgreSQL and SQLite stores use the same table layout, one table per
// registry named after Schema.Table with one column per schema field. Integer
// columns are read back as text so records carry the same values whichever
// store served them.
package db
