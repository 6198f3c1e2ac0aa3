/*
Package filelog records the last-write time of processed files so unchanged
files can be skipped on the next run.

Two stores are available. The text store keeps the format used by earlier
versions of the tool, a "[FileLog]" line followed by one name=timestamp line
per file, with timestamps stored as Windows FILETIME values. The SQLite store
keeps the same information in a database and is selected by giving the log a
.db or .sqlite extension.
*/
package filelog

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Log is a set of files and the modification time each had when last
// processed
type Log interface {
	// HasFileBeenModified returns true unless file is in the log with a
	// timestamp no older than its current modification time
	HasFileBeenModified(file string) bool
	// UpdateOrAddFile records the current modification time of file,
	// reporting whether it was newly added
	UpdateOrAddFile(file string) (bool, error)
	// DeleteFile removes file from the log. If ignoreExtension is set the
	// first entry with the same base name, regardless of directory or
	// extension, is removed instead.
	DeleteFile(file string, ignoreExtension bool) error
	// Save persists the log
	Save() error
	// Close releases any resources held by the log
	Close() error
}

// Open returns the log stored in file, creating an empty one if file does not
// exist yet
func Open(file string) (Log, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".db", ".sqlite":
		db, err := NewDB(file)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		l, err := NewTextLog(file)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// Number of 100ns intervals between 1601-01-01 and 1970-01-01
const fileTimeEpoch = 116444736000000000

// FileTime converts t into a Windows FILETIME value
func FileTime(t time.Time) int64 {
	return t.UnixNano()/100 + fileTimeEpoch
}

// FromFileTime converts a Windows FILETIME value into a time
func FromFileTime(ft int64) time.Time {
	return time.Unix(0, (ft-fileTimeEpoch)*100).UTC()
}

func modTime(file string) (int64, error) {
	info, err := os.Stat(file)
	if err != nil {
		return 0, err
	}
	return FileTime(info.ModTime()), nil
}

func stem(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
