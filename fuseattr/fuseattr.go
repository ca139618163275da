// Package fuseattr translates between the engine's inode.FileAttr and the
// jacobsa/fuse fuseops.InodeAttributes the mount adapter exchanges with
// the kernel, kept as one small, dependency-free conversion surface.
package fuseattr

import (
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/vajiraw/rencfs/inode"
)

// ToFuse converts a stored FileAttr into fuseops.InodeAttributes.
func ToFuse(attr inode.FileAttr) fuseops.InodeAttributes {
	mode := os.FileMode(attr.Perm)
	if attr.Kind == inode.Directory {
		mode |= os.ModeDir
	}
	return fuseops.InodeAttributes{
		Size:   attr.Size,
		Nlink:  attr.Nlink,
		Mode:   mode,
		Atime:  attr.Atime,
		Mtime:  attr.Mtime,
		Ctime:  attr.Ctime,
		Crtime: attr.Crtime,
		Uid:    attr.Uid,
		Gid:    attr.Gid,
	}
}

// FromCreate builds the engine's create-time attribute subset from a fuse
// mknod/mkdir/create request's requested mode and the mount's configured
// owner.
func FromCreate(kind inode.Kind, mode os.FileMode, uid, gid uint32) inode.CreateFileAttr {
	return inode.CreateFileAttr{
		Kind: kind,
		Perm: uint16(mode.Perm()),
		Uid:  uid,
		Gid:  gid,
	}
}

// ApplySetAttr translates a fuse SetInodeAttributes request's optional
// fields into the engine's sparse SetFileAttr form.
func ApplySetAttr(size *uint64, mode *os.FileMode, atime, mtime *time.Time) inode.SetFileAttr {
	var set inode.SetFileAttr
	if size != nil {
		set.Size = size
	}
	if mode != nil {
		perm := uint16(mode.Perm())
		set.Perm = &perm
	}
	if atime != nil {
		set.Atime = atime
	}
	if mtime != nil {
		set.Mtime = mtime
	}
	return set
}
