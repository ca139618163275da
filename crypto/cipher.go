// Package crypto provides the filesystem's cryptographic primitives as a
// swappable capability: key derivation, streaming authenticated encryption
// over file content, deterministic name encryption, and a keyed name hash.
// The engine never depends on a specific algorithm choice — only on this
// interface — but a real implementation (DefaultCipher) is provided so the
// module is runnable end to end.
package crypto

import "io"

// StreamReader is a seekable, authenticated decrypting reader over a
// content artifact. Seeking may require re-establishing state from a prior
// frame boundary; callers should not assume Seek is O(1).
type StreamReader interface {
	io.Reader
	io.Seeker
	io.Closer
}

// StreamWriter is a seekable, authenticated encrypting writer over a
// content artifact.
type StreamWriter interface {
	io.Writer
	io.Seeker
	// Flush durably persists any buffered frame without closing the
	// writer.
	Flush() error
	io.Closer
}

// FileCryptoWriterCallback is invoked by a StreamWriter whenever it mutates
// previously-written ciphertext, so the engine can reconcile any other
// open handles on the same inode.
type FileCryptoWriterCallback func(changedFromPos, lastWritePos uint64)

// FileCryptoWriterMetadataProvider supplies a writer with the current
// logical size of the inode it is writing, so the writer can tell apart
// "rewriting an existing frame" from "writing into a gap that must be
// zero-filled".
type FileCryptoWriterMetadataProvider interface {
	Size() uint64
}

// Cipher is the crypto capability the engine is built against.
type Cipher interface {
	// KeyLen is the length in bytes of a master data key.
	KeyLen() int
	// MaxPlaintextLen bounds the logical size of any single file.
	MaxPlaintextLen() uint64

	// DeriveKey derives a wrapping key from a passphrase and salt.
	DeriveKey(passphrase string, salt []byte) ([]byte, error)

	// EncryptBytes/DecryptBytes perform non-streaming authenticated
	// encryption of a small payload (inode records, directory entries).
	EncryptBytes(plaintext, key []byte) ([]byte, error)
	DecryptBytes(ciphertext, key []byte) ([]byte, error)

	// EncryptName deterministically encrypts a logical file name into an
	// on-disk-safe string; DecryptName reverses it.
	EncryptName(name string, key []byte) (string, error)
	DecryptName(encName string, key []byte) (string, error)

	// HashName computes a deterministic, fixed-width hex digest of name,
	// keyed by key, for use as a hash/ artifact's on-disk name.
	HashName(name string, key []byte) string

	// NewReader opens a streaming decrypting reader over f.
	NewReader(f io.ReaderAt, key []byte) (StreamReader, error)
	// NewWriter opens a streaming encrypting writer over f.
	NewWriter(f io.ReaderAt, w io.WriterAt, key []byte, meta FileCryptoWriterMetadataProvider, cb FileCryptoWriterCallback) (StreamWriter, error)
}
