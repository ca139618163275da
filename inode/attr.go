// Package inode implements the encrypted per-inode attribute store: the
// FileAttr/SetFileAttr records, and the read/update/delete operations
// with per-inode locking and an attribute LRU.
package inode

import "time"

// RootIno is the reserved inode id of the root directory.
const RootIno uint64 = 1

// Kind is the type of filesystem object an inode represents.
type Kind int

const (
	RegularFile Kind = iota
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// FileAttr is the full attribute record of an inode.
type FileAttr struct {
	Ino     uint64
	Size    uint64
	Blocks  uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Crtime  time.Time
	Kind    Kind
	Perm    uint16
	Nlink   uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint32
	Blksize uint32
	Flags   uint32
}

// TimeAndSize is the narrow attribute view threaded through open handle
// contexts: it lets a read handle's snapshot merge timestamps into
// get_inode without ever carrying (or being able to overwrite) size.
type TimeAndSize struct {
	Atime, Mtime, Ctime, Crtime time.Time
	Size                        uint64
}

// SnapshotFrom captures the timestamp+size fields of attr.
func SnapshotFrom(attr FileAttr) TimeAndSize {
	return TimeAndSize{
		Atime: attr.Atime, Mtime: attr.Mtime, Ctime: attr.Ctime, Crtime: attr.Crtime,
		Size: attr.Size,
	}
}

// SetFileAttr is a sparse update: only non-nil fields apply. Timestamps
// merge as a pointwise max with the stored value (monotonicity);
// size/perm/uid/gid/flags overwrite. This carries Flags, never Rdev:
// Rdev is set once at creation and never updated afterward.
type SetFileAttr struct {
	Size  *uint64
	Atime *time.Time
	Mtime *time.Time
	Ctime *time.Time
	Crtime *time.Time
	Perm  *uint16
	Uid   *uint32
	Gid   *uint32
	Flags *uint32
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Merge applies set onto attr in place.
func Merge(attr *FileAttr, set SetFileAttr) {
	if set.Atime != nil {
		attr.Atime = maxTime(attr.Atime, *set.Atime)
	}
	if set.Mtime != nil {
		attr.Mtime = maxTime(attr.Mtime, *set.Mtime)
	}
	if set.Ctime != nil {
		attr.Ctime = maxTime(attr.Ctime, *set.Ctime)
	}
	if set.Crtime != nil {
		attr.Crtime = maxTime(attr.Crtime, *set.Crtime)
	}
	if set.Size != nil {
		attr.Size = *set.Size
	}
	if set.Perm != nil {
		attr.Perm = *set.Perm
	}
	if set.Uid != nil {
		attr.Uid = *set.Uid
	}
	if set.Gid != nil {
		attr.Gid = *set.Gid
	}
	if set.Flags != nil {
		attr.Flags = *set.Flags
	}
}

// MergeLive fuses a stored attribute record with the timestamps (and, for
// at most one writer, the size) of any currently-open handles on the
// inode. This ensures stat reflects in-progress writes without forcing a
// flush.
func MergeLive(attr FileAttr, readSnapshots []TimeAndSize, writeSnapshot *TimeAndSize) FileAttr {
	for _, s := range readSnapshots {
		attr.Atime = maxTime(attr.Atime, s.Atime)
		attr.Mtime = maxTime(attr.Mtime, s.Mtime)
		attr.Ctime = maxTime(attr.Ctime, s.Ctime)
		attr.Crtime = maxTime(attr.Crtime, s.Crtime)
	}
	if writeSnapshot != nil {
		attr.Atime = maxTime(attr.Atime, writeSnapshot.Atime)
		attr.Mtime = maxTime(attr.Mtime, writeSnapshot.Mtime)
		attr.Ctime = maxTime(attr.Ctime, writeSnapshot.Ctime)
		attr.Crtime = maxTime(attr.Crtime, writeSnapshot.Crtime)
		attr.Size = writeSnapshot.Size
	}
	return attr
}

// CreateFileAttr is the subset of fields a caller supplies to create_nod;
// the rest (Ino, timestamps, Nlink, Size, Blocks) are filled in by the
// engine.
type CreateFileAttr struct {
	Kind  Kind
	Perm  uint16
	Uid   uint32
	Gid   uint32
	Rdev  uint32
	Flags uint32
}

// NewAttr builds the initial FileAttr for a freshly allocated inode.
func NewAttr(ino uint64, create CreateFileAttr, now time.Time) FileAttr {
	nlink := uint32(1)
	if create.Kind == Directory {
		nlink = 2
	}
	return FileAttr{
		Ino:     ino,
		Size:    0,
		Blocks:  0,
		Atime:   now,
		Mtime:   now,
		Ctime:   now,
		Crtime:  now,
		Kind:    create.Kind,
		Perm:    create.Perm,
		Nlink:   nlink,
		Uid:     create.Uid,
		Gid:     create.Gid,
		Rdev:    create.Rdev,
		Blksize: 4096,
		Flags:   create.Flags,
	}
}
