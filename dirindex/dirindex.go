// Package dirindex implements the per-directory dual name index: an ls/
// artifact per entry supporting ordered enumeration, and a hash/ artifact
// per entry supporting O(1) existence and lookup by name without a
// directory scan.
package dirindex

import (
	"encoding/json"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vajiraw/rencfs/content"
	"github.com/vajiraw/rencfs/crypto"
	"github.com/vajiraw/rencfs/inode"
	"github.com/vajiraw/rencfs/lockset"
	"github.com/vajiraw/rencfs/rerrors"
)

// selfName and parentName are the literal, never-encrypted on-disk names
// for the "." and ".." synthetic entries.
const (
	selfName   = "$."
	parentName = "$.."
)

// Entry is a logical directory entry as returned by ReadDir.
type Entry struct {
	Name string
	Ino  uint64
	Kind inode.Kind
}

// EntryPlus additionally carries the entry's attributes (ReadDirPlus).
type EntryPlus struct {
	Entry
	Attr inode.FileAttr
}

type lsPayload struct {
	Ino  uint64     `json:"ino"`
	Kind inode.Kind `json:"kind"`
}

type hashPayload struct {
	Ino     uint64     `json:"ino"`
	Kind    inode.Kind `json:"kind"`
	EncName string     `json:"enc_name"`
}

// Index is the directory-entry store shared by every directory in the
// tree; entries are disambiguated by parent inode id.
type Index struct {
	layout content.Layout
	cipher crypto.Cipher

	artifactLocks *lockset.Set[string] // level 4: per-artifact ls/hash RW locks

	nameCache *lru.Cache[string, string] // ls path -> decrypted logical name
	metaCache *lru.Cache[string, lsPayload]
}

// New constructs an Index. nameCacheSize/metaCacheSize are each 2000 by
// default.
func New(layout content.Layout, cipher crypto.Cipher, nameCacheSize, metaCacheSize int) (*Index, error) {
	nc, err := lru.New[string, string](nameCacheSize)
	if err != nil {
		return nil, err
	}
	mc, err := lru.New[string, lsPayload](metaCacheSize)
	if err != nil {
		return nil, err
	}
	return &Index{
		layout:        layout,
		cipher:        cipher,
		artifactLocks: lockset.New[string](),
		nameCache:     nc,
		metaCache:     mc,
	}, nil
}

func (ix *Index) encryptPayload(v any, key []byte) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, rerrors.E(rerrors.Serialize, "encode directory entry", err)
	}
	ct, err := ix.cipher.EncryptBytes(plain, key)
	if err != nil {
		return nil, rerrors.E(rerrors.Crypto, "encrypt directory entry", err)
	}
	return ct, nil
}

func (ix *Index) decryptInto(data, key []byte, v any) error {
	plain, err := ix.cipher.DecryptBytes(data, key)
	if err != nil {
		return rerrors.E(rerrors.Crypto, "decrypt directory entry", err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return rerrors.E(rerrors.Serialize, "decode directory entry", err)
	}
	return nil
}

// CreateDirIndex creates the ls/ and hash/ artifact directories for a
// freshly created directory inode and inserts its synthetic self entry
// (and parent entry, unless ino is the root, which has only self).
func (ix *Index) CreateDirIndex(ino, parentIno uint64, isRoot bool, key []byte) error {
	if err := content.MkdirAllSynced(ix.layout.LsDir(ino), 0o700); err != nil {
		return rerrors.E(rerrors.Io, "create ls dir", err)
	}
	if err := content.MkdirAllSynced(ix.layout.HashDir(ino), 0o700); err != nil {
		return rerrors.E(rerrors.Io, "create hash dir", err)
	}
	if err := ix.writeLs(ino, selfName, lsPayload{Ino: ino, Kind: inode.Directory}, key); err != nil {
		return err
	}
	if !isRoot {
		if err := ix.writeLs(ino, parentName, lsPayload{Ino: parentIno, Kind: inode.Directory}, key); err != nil {
			return err
		}
	}
	return nil
}

// RetargetParent overwrites a directory's ".." entry to point at
// newParent, used by rename when a directory is moved.
func (ix *Index) RetargetParent(ino, newParent uint64, key []byte) error {
	return ix.writeLs(ino, parentName, lsPayload{Ino: newParent, Kind: inode.Directory}, key)
}

func (ix *Index) writeLs(dirIno uint64, onDiskName string, payload lsPayload, key []byte) error {
	path := ix.layout.LsPath(dirIno, onDiskName)
	h := ix.artifactLocks.Lock(path)
	defer h.Unlock()
	ct, err := ix.encryptPayload(payload, key)
	if err != nil {
		return err
	}
	if err := content.AtomicWriteFile(path, ct, 0o600); err != nil {
		return rerrors.E(rerrors.Io, "write ls entry", err)
	}
	ix.metaCache.Add(path, payload)
	return nil
}

// InsertDirectoryEntry writes the ls and hash artifacts for a new
// directory entry. Both halves are written concurrently: the parent
// awaits both children, and the first failure becomes the whole
// operation's result.
func (ix *Index) InsertDirectoryEntry(parent uint64, name string, ino uint64, kind inode.Kind, key []byte) error {
	encName, err := ix.cipher.EncryptName(name, key)
	if err != nil {
		return rerrors.E(rerrors.Crypto, "encrypt name", err)
	}
	hashHex := ix.cipher.HashName(name, key)

	lsPath := ix.layout.LsPath(parent, encName)
	hashPath := ix.layout.HashPath(parent, hashHex)

	var g errgroup.Group
	g.Go(func() error {
		h := ix.artifactLocks.Lock(lsPath)
		defer h.Unlock()
		ct, err := ix.encryptPayload(lsPayload{Ino: ino, Kind: kind}, key)
		if err != nil {
			return err
		}
		if err := content.AtomicWriteFile(lsPath, ct, 0o600); err != nil {
			return rerrors.E(rerrors.Io, "write ls entry", err)
		}
		ix.metaCache.Add(lsPath, lsPayload{Ino: ino, Kind: kind})
		ix.nameCache.Add(lsPath, name)
		return nil
	})
	g.Go(func() error {
		h := ix.artifactLocks.Lock(hashPath)
		defer h.Unlock()
		ct, err := ix.encryptPayload(hashPayload{Ino: ino, Kind: kind, EncName: encName}, key)
		if err != nil {
			return err
		}
		if err := content.AtomicWriteFile(hashPath, ct, 0o600); err != nil {
			return rerrors.E(rerrors.Io, "write hash entry", err)
		}
		return nil
	})
	return g.Wait()
}

// RemoveDirectoryEntry locates the hash artifact for name, recovers the
// paired ls artifact's on-disk name from its payload, and removes both.
func (ix *Index) RemoveDirectoryEntry(parent uint64, name string, key []byte) error {
	hashHex := ix.cipher.HashName(name, key)
	hashPath := ix.layout.HashPath(parent, hashHex)

	hh := ix.artifactLocks.Lock(hashPath)
	var payload hashPayload
	data, err := os.ReadFile(hashPath)
	if err != nil {
		hh.Unlock()
		if os.IsNotExist(err) {
			return rerrors.E(rerrors.NotFound, "directory entry "+name, err)
		}
		return rerrors.E(rerrors.Io, "read hash entry", err)
	}
	if err := ix.decryptInto(data, key, &payload); err != nil {
		hh.Unlock()
		return err
	}
	if err := os.Remove(hashPath); err != nil && !os.IsNotExist(err) {
		hh.Unlock()
		return rerrors.E(rerrors.Io, "remove hash entry", err)
	}
	hh.Unlock()

	lsPath := ix.layout.LsPath(parent, payload.EncName)
	lh := ix.artifactLocks.Lock(lsPath)
	defer lh.Unlock()
	if err := os.Remove(lsPath); err != nil && !os.IsNotExist(err) {
		return rerrors.E(rerrors.Io, "remove ls entry", err)
	}
	ix.metaCache.Remove(lsPath)
	ix.nameCache.Remove(lsPath)
	return nil
}

// FindByName looks up name in parent by hashing it and decrypting the
// matching hash artifact.
func (ix *Index) FindByName(parent uint64, name string, key []byte) (ino uint64, kind inode.Kind, found bool, err error) {
	hashHex := ix.cipher.HashName(name, key)
	hashPath := ix.layout.HashPath(parent, hashHex)

	h := ix.artifactLocks.RLock(hashPath)
	defer h.Unlock()

	data, rerr := os.ReadFile(hashPath)
	if rerr != nil {
		if os.IsNotExist(rerr) {
			return 0, 0, false, nil
		}
		return 0, 0, false, rerrors.E(rerrors.Io, "read hash entry", rerr)
	}
	var payload hashPayload
	if err := ix.decryptInto(data, key, &payload); err != nil {
		return 0, 0, false, err
	}
	return payload.Ino, payload.Kind, true, nil
}

// ExistsByName stats the hash artifact without decrypting it.
func (ix *Index) ExistsByName(parent uint64, name string, key []byte) bool {
	hashHex := ix.cipher.HashName(name, key)
	hashPath := ix.layout.HashPath(parent, hashHex)
	h := ix.artifactLocks.RLock(hashPath)
	defer h.Unlock()
	_, err := os.Stat(hashPath)
	return err == nil
}

// ChildrenCount counts the non-synthetic entries of directory ino.
func (ix *Index) ChildrenCount(ino uint64) (int, error) {
	entries, err := os.ReadDir(ix.layout.LsDir(ino))
	if err != nil {
		return 0, rerrors.E(rerrors.Io, "read ls dir", err)
	}
	n := len(entries)
	if ino == inode.RootIno {
		n--
	} else {
		n -= 2
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// ReadDir enumerates the directory entries of parent, sorted by their
// on-disk names (so "." and ".." come first).
// offset is accepted but not applied in this version; it is treated as
// advisory, matching a readdir convention that ignores arbitrary caller
// skips.
func (ix *Index) ReadDir(parent uint64, offset int, key []byte) ([]Entry, error) {
	names, err := ix.lsOnDiskNames(parent)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(names))
	for _, onDisk := range names {
		e, err := ix.decodeLsEntry(parent, onDisk, key)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadDirPlus is ReadDir plus each entry's attributes, fetched through
// getAttr under the caller's per-inode read lock.
func (ix *Index) ReadDirPlus(parent uint64, offset int, key []byte, getAttr func(ino uint64) (inode.FileAttr, error)) ([]EntryPlus, error) {
	entries, err := ix.ReadDir(parent, offset, key)
	if err != nil {
		return nil, err
	}
	out := make([]EntryPlus, 0, len(entries))
	for _, e := range entries {
		attr, err := getAttr(e.Ino)
		if err != nil {
			return nil, err
		}
		out = append(out, EntryPlus{Entry: e, Attr: attr})
	}
	return out, nil
}

func (ix *Index) lsOnDiskNames(parent uint64) ([]string, error) {
	dirents, err := os.ReadDir(ix.layout.LsDir(parent))
	if err != nil {
		return nil, rerrors.E(rerrors.Io, "read ls dir", err)
	}
	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (ix *Index) decodeLsEntry(parent uint64, onDisk string, key []byte) (Entry, error) {
	path := ix.layout.LsPath(parent, onDisk)

	var logicalName string
	switch onDisk {
	case selfName:
		logicalName = "."
	case parentName:
		logicalName = ".."
	default:
		if cached, ok := ix.nameCache.Get(path); ok {
			logicalName = cached
		} else {
			name, err := ix.cipher.DecryptName(onDisk, key)
			if err != nil {
				return Entry{}, rerrors.E(rerrors.Crypto, "decrypt entry name", err)
			}
			ix.nameCache.Add(path, name)
			logicalName = name
		}
	}

	var payload lsPayload
	if cached, ok := ix.metaCache.Get(path); ok {
		payload = cached
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return Entry{}, rerrors.E(rerrors.Io, "read ls entry", err)
		}
		if err := ix.decryptInto(data, key, &payload); err != nil {
			return Entry{}, err
		}
		ix.metaCache.Add(path, payload)
	}

	return Entry{Name: logicalName, Ino: payload.Ino, Kind: payload.Kind}, nil
}
