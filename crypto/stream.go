package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// frameSize is the plaintext size of one encrypted frame. A frame is the
// unit of random access: writing into the middle of a frame requires
// decrypting and re-encrypting the whole frame, and reading after an
// arbitrary Seek re-derives state from the frame boundary at or before the
// requested offset. 64KiB balances random-access cost against per-frame
// AEAD overhead.
const frameSize = 64 * 1024

// headerLen is the length, in bytes, of the per-file random prefix stored
// at the start of every content artifact. It is mixed into every frame
// nonce so that two files encrypted under the same master key never reuse
// a nonce.
const headerLen = 4

const nonceLen = chacha20poly1305.NonceSize // 12
const overhead = chacha20poly1305.Overhead  // 16

// maxPlaintextLen bounds a single file to keep frame-index arithmetic
// within a 64-bit nonce counter with room to spare.
const maxPlaintextLen = uint64(1) << 48

// DefaultCipher implements Cipher using ChaCha20-Poly1305 AEAD framing,
// Argon2id key derivation, and keyed BLAKE2b name hashing.
type DefaultCipher struct{}

var _ Cipher = DefaultCipher{}

func (DefaultCipher) KeyLen() int               { return chacha20poly1305.KeySize }
func (DefaultCipher) MaxPlaintextLen() uint64 { return maxPlaintextLen }

func (DefaultCipher) DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("crypto: empty salt")
	}
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, chacha20poly1305.KeySize), nil
}

func newAEAD(key []byte) (aead, error) {
	return chacha20poly1305.New(key)
}

type aead = interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

func (DefaultCipher) EncryptBytes(plaintext, key []byte) ([]byte, error) {
	a, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := a.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

func (DefaultCipher) DecryptBytes(ciphertext, key []byte) ([]byte, error) {
	if len(ciphertext) < nonceLen {
		return nil, fmt.Errorf("crypto: ciphertext too short")
	}
	a, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, ct := ciphertext[:nonceLen], ciphertext[nonceLen:]
	return a.Open(nil, nonce, ct, nil)
}

// nameNonce derives a deterministic per-name nonce so EncryptName is
// reproducible without storing a separate nonce table.
func nameNonce(name string, key []byte) ([]byte, error) {
	h, err := blake2b.New(nonceLen, key)
	if err != nil {
		return nil, err
	}
	_, _ = h.Write([]byte("name-nonce|"))
	_, _ = h.Write([]byte(name))
	return h.Sum(nil), nil
}

func (c DefaultCipher) EncryptName(name string, key []byte) (string, error) {
	a, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce, err := nameNonce(name, key)
	if err != nil {
		return "", err
	}
	ct := a.Seal(nil, nonce, []byte(name), nil)
	out := append(append([]byte{}, nonce...), ct...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (c DefaultCipher) DecryptName(encName string, key []byte) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encName)
	if err != nil {
		return "", err
	}
	if len(raw) < nonceLen {
		return "", fmt.Errorf("crypto: encrypted name too short")
	}
	a, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce, ct := raw[:nonceLen], raw[nonceLen:]
	pt, err := a.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (DefaultCipher) HashName(name string, key []byte) string {
	h, err := blake2b.New256(key)
	if err != nil {
		// key length is always valid for blake2b (<=64 bytes); this
		// cannot happen with DefaultCipher-derived keys.
		panic(err)
	}
	_, _ = h.Write([]byte("name-hash|"))
	_, _ = h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil))
}

func frameNonce(prefix [headerLen]byte, frameIndex uint64) []byte {
	nonce := make([]byte, nonceLen)
	copy(nonce, prefix[:])
	binary.BigEndian.PutUint64(nonce[nonceLen-8:], frameIndex)
	return nonce
}

func frameCiphertextOffset(frameIndex uint64) int64 {
	return headerLen + int64(frameIndex)*(frameSize+overhead)
}

// CiphertextSize returns the on-disk size of a content artifact holding
// plaintextSize bytes of logical content under this cipher's frame
// layout. Callers use it to preallocate disk space ahead of a write that
// is known to grow a file, rather than discovering the final size one
// frame write at a time.
func (DefaultCipher) CiphertextSize(plaintextSize uint64) int64 {
	if plaintextSize == 0 {
		return headerLen
	}
	lastFrame := (plaintextSize - 1) / frameSize
	lastFrameLen := plaintextSize - lastFrame*frameSize
	return frameCiphertextOffset(lastFrame) + int64(lastFrameLen) + overhead
}

func (DefaultCipher) NewReader(f io.ReaderAt, key []byte) (StreamReader, error) {
	a, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	var prefix [headerLen]byte
	if _, err := f.ReadAt(prefix[:], 0); err != nil && err != io.EOF {
		return nil, err
	}
	return &streamReader{f: f, aead: a, prefix: prefix}, nil
}

func (DefaultCipher) NewWriter(f io.ReaderAt, w io.WriterAt, key []byte, meta FileCryptoWriterMetadataProvider, cb FileCryptoWriterCallback) (StreamWriter, error) {
	a, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	var prefix [headerLen]byte
	n, err := f.ReadAt(prefix[:], 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n < headerLen {
		if _, err := rand.Read(prefix[:]); err != nil {
			return nil, err
		}
		if _, err := w.WriteAt(prefix[:], 0); err != nil {
			return nil, err
		}
	}
	return &streamWriter{f: f, w: w, aead: a, prefix: prefix, meta: meta, cb: cb}, nil
}
