package service

import "context"

// TxRepositories exposes the repositories bound to one open transaction.
type TxRepositories interface {
	Manuscripts() ManuscriptRepositoryInterface
	Versions() VersionRepositoryInterface
	Edits() EditRepositoryInterface
	Chunks() ChunkRepositoryInterface
	IndexJobs() IndexJobRepositoryInterface
	StylePrefs() StylePrefRepositoryInterface
}

// TxRunner commits everything fn writes or nothing. Implementations may call
// fn more than once when the database aborts a transaction under contention,
// so fn must only touch state through repos and must reassign, not append to,
// anything it captures.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
