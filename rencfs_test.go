package rencfs

import (
	"context"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vajiraw/rencfs/config"
	"github.com/vajiraw/rencfs/crypto"
	"github.com/vajiraw/rencfs/inode"
	"github.com/vajiraw/rencfs/rerrors"
)

type fixedPassword struct{ pw string }

func (f fixedPassword) Password(ctx context.Context) (string, bool) { return f.pw, true }

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()
	dir := t.TempDir()
	fs, err := New(context.Background(), dir, fixedPassword{"correct horse battery staple"}, crypto.DefaultCipher{}, config.Default())
	require.NoError(t, err)
	return fs
}

func mustCreate(t *testing.T, fs *FileSystem, parent uint64, name string, kind inode.Kind) (uint64, inode.FileAttr) {
	t.Helper()
	create := inode.CreateFileAttr{Kind: kind, Perm: 0o644, Uid: 1000, Gid: 1000}
	_, attr, err := fs.CreateNod(context.Background(), parent, name, create, false, false)
	require.NoError(t, err)
	return attr.Ino, attr
}

func TestCreateWriteRead(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	create := inode.CreateFileAttr{Kind: inode.RegularFile, Perm: 0o644}
	fh, attr, err := fs.CreateNod(ctx, inode.RootIno, "greeting.txt", create, true, true)
	require.NoError(t, err)
	require.NotEqual(t, uint64(0), fh)
	assert.Equal(t, inode.RegularFile, attr.Kind)

	payload := []byte("hello, encrypted world")
	n, err := fs.Write(ctx, attr.Ino, 0, payload, fh)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, fs.Flush(fh))

	buf := make([]byte, len(payload))
	n, err = fs.Read(ctx, attr.Ino, 0, buf, fh)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])

	require.NoError(t, fs.Release(ctx, fh))

	got, err := fs.GetInode(ctx, attr.Ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), got.Size)
}

func TestCreateNodRejectsDuplicateName(t *testing.T) {
	fs := newTestFS(t)
	mustCreate(t, fs, inode.RootIno, "dup.txt", inode.RegularFile)

	create := inode.CreateFileAttr{Kind: inode.RegularFile, Perm: 0o644}
	_, _, err := fs.CreateNod(context.Background(), inode.RootIno, "dup.txt", create, false, false)
	require.Error(t, err)
	assert.Equal(t, rerrors.AlreadyExists, rerrors.KindOf(err))
}

func TestFindByNameAndReadDir(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	mustCreate(t, fs, inode.RootIno, "a.txt", inode.RegularFile)
	dirIno, _ := mustCreate(t, fs, inode.RootIno, "sub", inode.Directory)
	mustCreate(t, fs, dirIno, "b.txt", inode.RegularFile)

	attr, found, err := fs.FindByName(ctx, inode.RootIno, "a.txt")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, inode.RegularFile, attr.Kind)

	_, found, err = fs.FindByName(ctx, inode.RootIno, "nope.txt")
	require.NoError(t, err)
	assert.False(t, found)

	entries, err := fs.ReadDir(ctx, inode.RootIno, 0)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["sub"])

	subEntries, err := fs.ReadDir(ctx, dirIno, 0)
	require.NoError(t, err)
	// "." and ".." sort ahead of every encrypted on-disk name.
	require.Len(t, subEntries, 3)
	assert.Equal(t, "b.txt", subEntries[2].Name)
}

func TestRenameAcrossDirectories(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	ino, _ := mustCreate(t, fs, inode.RootIno, "move-me.txt", inode.RegularFile)
	dstDir, _ := mustCreate(t, fs, inode.RootIno, "dst", inode.Directory)

	require.NoError(t, fs.Rename(ctx, inode.RootIno, "move-me.txt", dstDir, "moved.txt"))

	_, found, err := fs.FindByName(ctx, inode.RootIno, "move-me.txt")
	require.NoError(t, err)
	assert.False(t, found)

	attr, found, err := fs.FindByName(ctx, dstDir, "moved.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ino, attr.Ino)
}

func TestRenameDirectoryRetargetsParent(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	srcParent, _ := mustCreate(t, fs, inode.RootIno, "src", inode.Directory)
	dstParent, _ := mustCreate(t, fs, inode.RootIno, "dst", inode.Directory)
	child, _ := mustCreate(t, fs, srcParent, "child", inode.Directory)

	require.NoError(t, fs.Rename(ctx, inode.RootIno, "src", dstParent, "src2"))

	_, found, err := fs.FindByName(ctx, dstParent, "child")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = fs.FindByName(ctx, inode.RootIno, "src")
	require.NoError(t, err)
	assert.False(t, found)

	attr, found, err := fs.FindByName(ctx, dstParent, "src2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, srcParent, attr.Ino)

	subEntries, err := fs.ReadDir(ctx, attr.Ino, 0)
	require.NoError(t, err)
	// "." and ".." sort ahead of every encrypted on-disk name.
	require.Len(t, subEntries, 3)
	assert.Equal(t, "..", subEntries[1].Name)
	assert.Equal(t, dstParent, subEntries[1].Ino)
	assert.Equal(t, child, subEntries[2].Ino)
}

func TestDeleteDirRejectsNonEmpty(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	dirIno, _ := mustCreate(t, fs, inode.RootIno, "nonempty", inode.Directory)
	mustCreate(t, fs, dirIno, "child.txt", inode.RegularFile)

	err := fs.DeleteDir(ctx, inode.RootIno, "nonempty")
	require.Error(t, err)
	assert.Equal(t, rerrors.NotEmpty, rerrors.KindOf(err))
}

func TestDeleteFile(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	mustCreate(t, fs, inode.RootIno, "gone.txt", inode.RegularFile)
	require.NoError(t, fs.DeleteFile(ctx, inode.RootIno, "gone.txt"))

	_, found, err := fs.FindByName(ctx, inode.RootIno, "gone.txt")
	require.NoError(t, err)
	assert.False(t, found)

	err = fs.DeleteFile(ctx, inode.RootIno, "gone.txt")
	require.Error(t, err)
	assert.Equal(t, rerrors.NotFound, rerrors.KindOf(err))
}

func TestTruncateExtendsWithZeros(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	create := inode.CreateFileAttr{Kind: inode.RegularFile, Perm: 0o644}
	fh, attr, err := fs.CreateNod(ctx, inode.RootIno, "extend.bin", create, true, true)
	require.NoError(t, err)

	_, err = fs.Write(ctx, attr.Ino, 0, []byte("abc"), fh)
	require.NoError(t, err)
	require.NoError(t, fs.Release(ctx, fh))

	require.NoError(t, fs.Truncate(ctx, attr.Ino, 6))

	got, err := fs.GetInode(ctx, attr.Ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got.Size)

	fh2, err := fs.Open(ctx, attr.Ino, true, false)
	require.NoError(t, err)
	buf := make([]byte, 6)
	n, err := fs.Read(ctx, attr.Ino, 0, buf, fh2)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0}, buf[:n])
	require.NoError(t, fs.Release(ctx, fh2))
}

func TestOpenRejectsDirectory(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	dirIno, _ := mustCreate(t, fs, inode.RootIno, "adir", inode.Directory)
	_, err := fs.Open(ctx, dirIno, true, false)
	require.Error(t, err)
	assert.Equal(t, rerrors.InvalidInodeType, rerrors.KindOf(err))
}

func TestChangePasswordPreservesContent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cipher := crypto.DefaultCipher{}

	fs, err := New(ctx, dir, fixedPassword{"old-password"}, cipher, config.Default())
	require.NoError(t, err)

	create := inode.CreateFileAttr{Kind: inode.RegularFile, Perm: 0o644}
	fh, attr, err := fs.CreateNod(ctx, inode.RootIno, "secret.txt", create, true, true)
	require.NoError(t, err)
	_, err = fs.Write(ctx, attr.Ino, 0, []byte("top secret"), fh)
	require.NoError(t, err)
	require.NoError(t, fs.Release(ctx, fh))

	preAttr, err := fs.GetInode(ctx, attr.Ino)
	require.NoError(t, err)

	require.NoError(t, fs.ChangePassword("old-password", "new-password"))

	fs2, err := New(ctx, dir, fixedPassword{"new-password"}, cipher, config.Default())
	require.NoError(t, err)

	fh2, err := fs2.Open(ctx, attr.Ino, true, false)
	require.NoError(t, err)
	buf := make([]byte, len("top secret"))
	n, err := fs2.Read(ctx, attr.Ino, 0, buf, fh2)
	require.NoError(t, err)
	assert.Equal(t, "top secret", string(buf[:n]))
	require.NoError(t, fs2.Release(ctx, fh2))

	postAttr, err := fs2.GetInode(ctx, attr.Ino)
	require.NoError(t, err)
	if diff := pretty.Compare(preAttr, postAttr); diff != "" {
		t.Fatalf("inode attributes changed across password rotation:\n%s", diff)
	}
}

func TestSecondWriterRejected(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	create := inode.CreateFileAttr{Kind: inode.RegularFile, Perm: 0o644}
	fh1, attr, err := fs.CreateNod(ctx, inode.RootIno, "exclusive.txt", create, true, true)
	require.NoError(t, err)

	_, err = fs.Open(ctx, attr.Ino, false, true)
	require.Error(t, err)
	assert.Equal(t, rerrors.AlreadyOpenForWrite, rerrors.KindOf(err))

	require.NoError(t, fs.Release(ctx, fh1))

	fh2, err := fs.Open(ctx, attr.Ino, false, true)
	require.NoError(t, err)
	require.NoError(t, fs.Release(ctx, fh2))
}

func TestWrongPasswordFails(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cipher := crypto.DefaultCipher{}

	fs, err := New(ctx, dir, fixedPassword{"correct"}, cipher, config.Default())
	require.NoError(t, err)
	mustCreate(t, fs, inode.RootIno, "whatever.txt", inode.RegularFile)

	_, err = New(ctx, dir, fixedPassword{"wrong"}, cipher, config.Default())
	require.Error(t, err)
	assert.Equal(t, rerrors.InvalidPassword, rerrors.KindOf(err))
}
