// Package handle implements the open-file handle table: per-fh read and
// write contexts, each snapshotting the inode's timestamps (and, for
// writers, size) at open time so high-frequency I/O does not force
// repeated inode serialization.
package handle

import (
	"sync"
	"sync/atomic"

	"github.com/vajiraw/rencfs/crypto"
	"github.com/vajiraw/rencfs/inode"
	"github.com/vajiraw/rencfs/rerrors"
)

// NoHandle is the reserved "no handle" value: directories, and files
// opened without read/write flags, use it.
const NoHandle uint64 = 0

// ReadCtx is an open read-side context.
type ReadCtx struct {
	Ino    uint64
	Reader crypto.StreamReader

	mu       sync.Mutex
	snapshot inode.TimeAndSize
}

// Snapshot returns the context's cached timestamps. Callers must hold Lock.
func (c *ReadCtx) Snapshot() inode.TimeAndSize { return c.snapshot }

// Lock/Unlock expose the context's per-handle mutex (lock hierarchy level
// 6), held by callers around a read and its Snapshot/UpdateSnapshot calls
// so the stream position and the cached timestamps stay consistent with
// each other.
func (c *ReadCtx) Lock()   { c.mu.Lock() }
func (c *ReadCtx) Unlock() { c.mu.Unlock() }

// WriteCtx is an open write-side context.
type WriteCtx struct {
	Ino    uint64
	Writer crypto.StreamWriter

	mu       sync.Mutex
	snapshot inode.TimeAndSize
}

// Snapshot returns the context's cached timestamps and size. Callers must
// hold Lock.
func (c *WriteCtx) Snapshot() inode.TimeAndSize { return c.snapshot }

// Lock/Unlock expose the context's per-handle mutex (lock hierarchy level 6).
func (c *WriteCtx) Lock()   { c.mu.Lock() }
func (c *WriteCtx) Unlock() { c.mu.Unlock() }

// Table is the handle table: two maps (read handles, write handles) and
// two indices (the open-for-read and open-for-write sets per inode).
type Table struct {
	mu sync.RWMutex // level 5

	nextFh uint64

	readHandles  map[uint64]*ReadCtx
	writeHandles map[uint64]*WriteCtx

	readIndex  map[uint64]map[uint64]struct{} // ino -> set of fh
	writeIndex map[uint64]uint64              // ino -> fh
}

func New() *Table {
	return &Table{
		readHandles:  make(map[uint64]*ReadCtx),
		writeHandles: make(map[uint64]*WriteCtx),
		readIndex:    make(map[uint64]map[uint64]struct{}),
		writeIndex:   make(map[uint64]uint64),
	}
}

func (t *Table) allocFh() uint64 {
	return atomic.AddUint64(&t.nextFh, 1)
}

// Open registers read and/or write contexts for ino: at least one of
// wantRead/wantWrite must be set by the caller. If wantWrite and the
// inode already has an open writer, AlreadyOpenForWrite is returned and
// any read-side registration just made by this call is rolled back.
func (t *Table) Open(ino uint64, wantRead, wantWrite bool, readCtx *ReadCtx, writeCtx *WriteCtx) (fh uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fh = t.allocFh()

	if wantRead {
		readCtx.Ino = ino
		t.readHandles[fh] = readCtx
		if t.readIndex[ino] == nil {
			t.readIndex[ino] = make(map[uint64]struct{})
		}
		t.readIndex[ino][fh] = struct{}{}
	}

	if wantWrite {
		if _, busy := t.writeIndex[ino]; busy {
			if wantRead {
				delete(t.readHandles, fh)
				delete(t.readIndex[ino], fh)
				if len(t.readIndex[ino]) == 0 {
					delete(t.readIndex, ino)
				}
			}
			return 0, rerrors.E(rerrors.AlreadyOpenForWrite, "", nil)
		}
		writeCtx.Ino = ino
		t.writeHandles[fh] = writeCtx
		t.writeIndex[ino] = fh
	}

	return fh, nil
}

func (t *Table) GetRead(fh uint64) (*ReadCtx, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.readHandles[fh]
	return c, ok
}

func (t *Table) GetWrite(fh uint64) (*WriteCtx, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.writeHandles[fh]
	return c, ok
}

// ReleaseRead removes fh's read context and returns it for the caller to
// reconcile into the inode store.
func (t *Table) ReleaseRead(fh uint64) (*ReadCtx, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.readHandles[fh]
	if !ok {
		return nil, false
	}
	delete(t.readHandles, fh)
	if set := t.readIndex[c.Ino]; set != nil {
		delete(set, fh)
		if len(set) == 0 {
			delete(t.readIndex, c.Ino)
		}
	}
	return c, true
}

// ReleaseWrite removes fh's write context and returns it for the caller
// to reconcile into the inode store.
func (t *Table) ReleaseWrite(fh uint64) (*WriteCtx, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.writeHandles[fh]
	if !ok {
		return nil, false
	}
	delete(t.writeHandles, fh)
	if t.writeIndex[c.Ino] == fh {
		delete(t.writeIndex, c.Ino)
	}
	return c, true
}

// ReadContextsFor returns the snapshots of every open read handle on ino,
// for get_inode's live-state fusion and for resetting other read handles
// after a write truncates or extends the content they're reading.
func (t *Table) ReadContextsFor(ino uint64) []*ReadCtx {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.readIndex[ino]
	out := make([]*ReadCtx, 0, len(set))
	for fh := range set {
		out = append(out, t.readHandles[fh])
	}
	return out
}

// WriteContextFor returns the at-most-one open write handle on ino.
func (t *Table) WriteContextFor(ino uint64) (*WriteCtx, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fh, ok := t.writeIndex[ino]
	if !ok {
		return nil, false
	}
	return t.writeHandles[fh], true
}

// UpdateSnapshot replaces the context's snapshot. Callers must hold Lock.
func (c *ReadCtx) UpdateSnapshot(s inode.TimeAndSize) { c.snapshot = s }

// InitSnapshot sets the initial snapshot at open time, before the context
// is registered in the table and so before any other goroutine can reach
// it; it takes the lock itself for safety but callers need not hold it.
func (c *ReadCtx) InitSnapshot(s inode.TimeAndSize) {
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
}

// UpdateSnapshot replaces the context's snapshot. Callers must hold Lock.
func (c *WriteCtx) UpdateSnapshot(s inode.TimeAndSize) { c.snapshot = s }

// InitSnapshot sets the initial snapshot at open time (see ReadCtx.InitSnapshot).
func (c *WriteCtx) InitSnapshot(s inode.TimeAndSize) {
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
}

// Size implements crypto.FileCryptoWriterMetadataProvider by exposing the
// write context's snapshot size. The writer only ever calls this from
// within a Write call made while the caller holds Lock (see
// FileSystem.Write), so no separate locking is needed here.
func (c *WriteCtx) Size() uint64 { return c.snapshot.Size }
