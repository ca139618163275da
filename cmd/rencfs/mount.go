package main

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"

	"github.com/vajiraw/rencfs"
	"github.com/vajiraw/rencfs/config"
	"github.com/vajiraw/rencfs/crypto"
	"github.com/vajiraw/rencfs/fuseattr"
	"github.com/vajiraw/rencfs/fuseutil"
	"github.com/vajiraw/rencfs/inode"
	"github.com/vajiraw/rencfs/rerrors"
)

// adapter implements fuseutil.FileSystem, translating kernel ops into
// calls against the engine. It embeds NotImplementedFileSystem to get
// safe ENOSYS defaults for anything the mount never needs to support
// (symlinks, hard links, xattrs).
type adapter struct {
	fuseutil.NotImplementedFileSystem

	eng      *rencfs.FileSystem
	uid, gid uint32
}

func mount(dataDir, mountPoint string, pw rencfs.PasswordProvider, cipher crypto.Cipher, cfg config.Config) error {
	ctx := context.Background()

	eng, err := rencfs.New(ctx, dataDir, pw, cipher, cfg)
	if err != nil {
		return err
	}

	a := &adapter{eng: eng, uid: uint32(os.Getuid()), gid: uint32(os.Getgid())}

	server := fuseutil.NewFileSystemServer(a)
	mfs, err := fuse.Mount(mountPoint, server, &fuse.MountConfig{
		DisableWritebackCaching: true,
	})
	if err != nil {
		return err
	}
	return mfs.Join(ctx)
}

func toErrno(err error) error {
	if err == nil {
		return nil
	}
	switch rerrors.KindOf(err) {
	case rerrors.NotFound, rerrors.InodeNotFound:
		return syscall.ENOENT
	case rerrors.AlreadyExists:
		return syscall.EEXIST
	case rerrors.NotEmpty:
		return syscall.ENOTEMPTY
	case rerrors.InvalidInodeType:
		return syscall.EISDIR
	case rerrors.InvalidFileHandle:
		return syscall.EBADF
	case rerrors.AlreadyOpenForWrite:
		return syscall.ETXTBSY
	case rerrors.InvalidPassword, rerrors.Keyring:
		return syscall.EACCES
	case rerrors.MaxFilesizeExceeded:
		return syscall.EFBIG
	case rerrors.InvalidInput, rerrors.InvalidDataDirStructure:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

func (a *adapter) childEntry(ino uint64, attr inode.FileAttr) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:      fuseops.InodeID(ino),
		Attributes: fuseattr.ToFuse(attr),
	}
}

func (a *adapter) Init(op *fuseops.InitOp) {
	op.Respond(nil)
}

func (a *adapter) LookUpInode(op *fuseops.LookUpInodeOp) {
	attr, found, err := a.eng.FindByName(op.Context(), uint64(op.Parent), op.Name)
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	if !found {
		op.Respond(syscall.ENOENT)
		return
	}
	op.Entry = a.childEntry(attr.Ino, attr)
	op.Respond(nil)
}

func (a *adapter) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	attr, err := a.eng.GetInode(op.Context(), uint64(op.Inode))
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	op.Attributes = fuseattr.ToFuse(attr)
	op.Respond(nil)
}

func (a *adapter) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) {
	ino := uint64(op.Inode)
	if op.Size != nil {
		if err := a.eng.Truncate(op.Context(), ino, *op.Size); err != nil {
			op.Respond(toErrno(err))
			return
		}
	}
	set := fuseattr.ApplySetAttr(nil, op.Mode, op.Atime, op.Mtime)
	attr, err := a.eng.UpdateInode(op.Context(), ino, set)
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	op.Attributes = fuseattr.ToFuse(attr)
	op.Respond(nil)
}

func (a *adapter) ForgetInode(op *fuseops.ForgetInodeOp) {
	op.Respond(nil)
}

func (a *adapter) MkDir(op *fuseops.MkDirOp) {
	create := fuseattr.FromCreate(inode.Directory, op.Mode, a.uid, a.gid)
	_, attr, err := a.eng.CreateNod(op.Context(), uint64(op.Parent), op.Name, create, false, false)
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	op.Entry = a.childEntry(attr.Ino, attr)
	op.Respond(nil)
}

func (a *adapter) CreateFile(op *fuseops.CreateFileOp) {
	create := fuseattr.FromCreate(inode.RegularFile, op.Mode, a.uid, a.gid)
	fh, attr, err := a.eng.CreateNod(op.Context(), uint64(op.Parent), op.Name, create, true, true)
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	op.Entry = a.childEntry(attr.Ino, attr)
	op.Handle = fuseops.HandleID(fh)
	op.Respond(nil)
}

func (a *adapter) RmDir(op *fuseops.RmDirOp) {
	op.Respond(toErrno(a.eng.DeleteDir(op.Context(), uint64(op.Parent), op.Name)))
}

func (a *adapter) Unlink(op *fuseops.UnlinkOp) {
	op.Respond(toErrno(a.eng.DeleteFile(op.Context(), uint64(op.Parent), op.Name)))
}

// Rename has no op type (no RenameOp) in this fuseutil.FileSystem
// dispatch surface (see DESIGN.md): the engine's own Rename is fully
// implemented and exercised by tests, but this mount adapter cannot route
// a kernel rename(2) to it through fuseutil.NewFileSystemServer.

func (a *adapter) OpenDir(op *fuseops.OpenDirOp) {
	if _, err := a.eng.GetInode(op.Context(), uint64(op.Inode)); err != nil {
		op.Respond(toErrno(err))
		return
	}
	op.Respond(nil)
}

func (a *adapter) ReadDir(op *fuseops.ReadDirOp) {
	entries, err := a.eng.ReadDirPlus(op.Context(), uint64(op.Inode), int(op.Offset))
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	scratch := make([]byte, op.Size)
	var used int
	for i, e := range entries {
		if uint64(i) < uint64(op.Offset) {
			continue
		}
		n := fuseutil.WriteDirent(scratch[used:], fuseops.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.InodeID(e.Ino),
			Name:   e.Name,
			Type:   direntType(e.Kind),
		})
		if n == 0 {
			break
		}
		used += n
	}
	op.Data = scratch[:used]
	op.Respond(nil)
}

func direntType(k inode.Kind) fuseops.DirentType {
	if k == inode.Directory {
		return fuseops.DT_Directory
	}
	return fuseops.DT_File
}

func (a *adapter) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	op.Respond(nil)
}

func (a *adapter) OpenFile(op *fuseops.OpenFileOp) {
	wantWrite := op.Flags.IsWriteOnly() || op.Flags.IsReadWrite()
	fh, err := a.eng.Open(op.Context(), uint64(op.Inode), true, wantWrite)
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	op.Handle = fuseops.HandleID(fh)
	op.Respond(nil)
}

func (a *adapter) ReadFile(op *fuseops.ReadFileOp) {
	buf := make([]byte, op.Size)
	n, err := a.eng.Read(op.Context(), uint64(op.Inode), op.Offset, buf, uint64(op.Handle))
	if err != nil {
		op.Respond(toErrno(err))
		return
	}
	op.Data = buf[:n]
	op.Respond(nil)
}

func (a *adapter) WriteFile(op *fuseops.WriteFileOp) {
	_, err := a.eng.Write(op.Context(), uint64(op.Inode), op.Offset, op.Data, uint64(op.Handle))
	op.Respond(toErrno(err))
}

func (a *adapter) SyncFile(op *fuseops.SyncFileOp) {
	op.Respond(toErrno(a.eng.Flush(uint64(op.Handle))))
}

func (a *adapter) FlushFile(op *fuseops.FlushFileOp) {
	op.Respond(toErrno(a.eng.Flush(uint64(op.Handle))))
}

func (a *adapter) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	op.Respond(toErrno(a.eng.Release(op.Context(), uint64(op.Handle))))
}
