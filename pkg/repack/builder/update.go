package builder

import (
	"strconv"

	"github.com/texmill/repack/pkg/repack/repodb"
)

// UpdateRepository brings the repository's package archives and the
// manifest database in sync with the collected package table. Excluded
// packages and pure containers are skipped. For every remaining
// package the archive file is created or reused, then its database
// section is rewritten; empty optional metadata is removed rather than
// stored.
func (b *Builder) UpdateRepository(db *repodb.DB) error {
	for _, id := range b.sortedIDs() {
		info := b.packages[id]
		if b.excluded(info) || info.IsPureContainer() {
			continue
		}

		db.Put(id, "Level", b.level(info).String())

		format, err := b.createArchiveFile(info, db)
		if err != nil {
			return err
		}

		db.Put(id, "MD5", info.Digest.String())
		db.Put(id, "TimePackaged", strconv.FormatInt(info.TimePackaged.Unix(), 10))
		db.Put(id, "CabSize", strconv.FormatInt(info.ArchiveFileSize, 10))
		db.Put(id, "CabMD5", info.ArchiveFileDigest.String())
		db.Put(id, "Type", format.Token())

		db.PutOrDelete(id, "Version", info.Version)
		db.PutOrDelete(id, "TargetSystem", info.TargetSystem)
		db.PutOrDelete(id, "MinTargetSystemVersion", info.MinTargetSystemVersion)
	}
	return nil
}
