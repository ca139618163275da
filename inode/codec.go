package inode

import (
	"encoding/json"
	"time"
)

// wireAttr is the plaintext serialization of a FileAttr, encrypted as a
// whole before being written to inodes/<ino>.
type wireAttr struct {
	Ino     uint64    `json:"ino"`
	Size    uint64    `json:"size"`
	Blocks  uint64    `json:"blocks"`
	Atime   time.Time `json:"atime"`
	Mtime   time.Time `json:"mtime"`
	Ctime   time.Time `json:"ctime"`
	Crtime  time.Time `json:"crtime"`
	Kind    Kind      `json:"kind"`
	Perm    uint16    `json:"perm"`
	Nlink   uint32    `json:"nlink"`
	Uid     uint32    `json:"uid"`
	Gid     uint32    `json:"gid"`
	Rdev    uint32    `json:"rdev"`
	Blksize uint32    `json:"blksize"`
	Flags   uint32    `json:"flags"`
}

func encode(attr FileAttr) ([]byte, error) {
	return json.Marshal(wireAttr(attr))
}

func decode(data []byte) (FileAttr, error) {
	var w wireAttr
	if err := json.Unmarshal(data, &w); err != nil {
		return FileAttr{}, err
	}
	return FileAttr(w), nil
}
