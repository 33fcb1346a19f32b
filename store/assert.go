package store

var (
	_ RepodataCache = (*SQLite)(nil)
	_ RepodataCache = (*Postgres)(nil)
)
