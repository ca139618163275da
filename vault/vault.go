// Package vault implements the master key lifecycle: reading or creating
// key.enc/key.salt, deriving the wrapping key from a passphrase, and
// changing the passphrase without touching the master key or any content
// it protects.
package vault

import (
	"context"
	"crypto/rand"
	"os"
	"time"

	"github.com/vajiraw/rencfs/content"
	"github.com/vajiraw/rencfs/crypto"
	"github.com/vajiraw/rencfs/expiring"
	"github.com/vajiraw/rencfs/rerrors"
)

const saltLen = 16

// PasswordProvider yields a passphrase on demand; a false second return
// value is treated as "no password", surfaced as InvalidPassword.
type PasswordProvider interface {
	Password(ctx context.Context) (string, bool)
}

// Vault owns read-or-create-key and caches the resulting master key
// behind an expiring.Value with a configurable TTL (10 minutes by
// default, via config.Config.KeyTTL).
type Vault struct {
	layout content.Layout
	cipher crypto.Cipher
	pw     PasswordProvider

	cached *expiring.Value[[]byte]
}

// New constructs a Vault. ttl <= 0 caches the key forever once derived.
func New(layout content.Layout, cipher crypto.Cipher, pw PasswordProvider, ttl time.Duration) *Vault {
	return &Vault{
		layout: layout,
		cipher: cipher,
		pw:     pw,
		cached: expiring.NewValue[[]byte](ttl),
	}
}

// Get returns the cached master key, re-deriving it from the passphrase
// provider if the cache is empty or has expired from disuse.
func (v *Vault) Get(ctx context.Context) ([]byte, error) {
	return v.cached.Get(ctx, v.load)
}

// Invalidate forces the next Get to re-derive the master key.
func (v *Vault) Invalidate() {
	v.cached.Invalidate()
}

func (v *Vault) load(ctx context.Context) ([]byte, error) {
	password, ok := v.pw.Password(ctx)
	if !ok {
		return nil, rerrors.E(rerrors.InvalidPassword, "no password supplied", nil)
	}
	return readOrCreateKey(v.layout, v.cipher, password)
}

// readOrCreateKey derives the wrapping key from the passphrase and salt,
// then decrypts the existing master key or generates and persists a fresh
// one if none exists yet.
func readOrCreateKey(layout content.Layout, cipher crypto.Cipher, password string) ([]byte, error) {
	salt, err := loadOrCreateSalt(layout)
	if err != nil {
		return nil, err
	}

	wrappingKey, err := cipher.DeriveKey(password, salt)
	if err != nil {
		return nil, rerrors.E(rerrors.Crypto, "derive wrapping key", err)
	}

	keyEncPath := layout.KeyEncPath()
	if data, err := os.ReadFile(keyEncPath); err == nil {
		master, err := cipher.DecryptBytes(data, wrappingKey)
		if err != nil {
			return nil, rerrors.E(rerrors.InvalidPassword, "", err)
		}
		return master, nil
	} else if !os.IsNotExist(err) {
		return nil, rerrors.E(rerrors.Io, "read key.enc", err)
	}

	master := make([]byte, cipher.KeyLen())
	if _, err := rand.Read(master); err != nil {
		return nil, rerrors.E(rerrors.Crypto, "generate master key", err)
	}
	ct, err := cipher.EncryptBytes(master, wrappingKey)
	if err != nil {
		return nil, rerrors.E(rerrors.Crypto, "encrypt master key", err)
	}
	if err := content.AtomicWriteFile(keyEncPath, ct, 0o600); err != nil {
		return nil, rerrors.E(rerrors.Io, "write key.enc", err)
	}
	return master, nil
}

func loadOrCreateSalt(layout content.Layout) ([]byte, error) {
	saltPath := layout.KeySaltPath()
	if data, err := os.ReadFile(saltPath); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, rerrors.E(rerrors.Io, "read key.salt", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, rerrors.E(rerrors.Crypto, "generate salt", err)
	}
	if err := content.AtomicWriteFile(saltPath, salt, 0o600); err != nil {
		return nil, rerrors.E(rerrors.Io, "write key.salt", err)
	}
	return salt, nil
}

// ChangePassword rewraps the master key under a new passphrase: the
// master key itself never changes, only the wrapping key that protects it
// on disk, so existing ciphertext content remains valid without
// rewriting.
func ChangePassword(layout content.Layout, cipher crypto.Cipher, oldPassword, newPassword string) error {
	salt, err := os.ReadFile(layout.KeySaltPath())
	if err != nil {
		return rerrors.E(rerrors.Io, "read key.salt", err)
	}

	oldWrapping, err := cipher.DeriveKey(oldPassword, salt)
	if err != nil {
		return rerrors.E(rerrors.Crypto, "derive old wrapping key", err)
	}
	data, err := os.ReadFile(layout.KeyEncPath())
	if err != nil {
		return rerrors.E(rerrors.Io, "read key.enc", err)
	}
	master, err := cipher.DecryptBytes(data, oldWrapping)
	if err != nil {
		return rerrors.E(rerrors.InvalidPassword, "", err)
	}

	newWrapping, err := cipher.DeriveKey(newPassword, salt)
	if err != nil {
		return rerrors.E(rerrors.Crypto, "derive new wrapping key", err)
	}
	ct, err := cipher.EncryptBytes(master, newWrapping)
	if err != nil {
		return rerrors.E(rerrors.Crypto, "re-encrypt master key", err)
	}
	if err := content.AtomicWriteFile(layout.KeyEncPath(), ct, 0o600); err != nil {
		return rerrors.E(rerrors.Io, "write key.enc", err)
	}
	return nil
}

// CheckStructure validates the data directory layout, tolerating a
// completely empty directory as the initialization path. A directory that
// does not exist yet is not a structure violation either: it is left for
// EnsureStructureCreated to create.
func CheckStructure(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return rerrors.E(rerrors.Io, "read data dir", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if len(entries) != 3 {
		return rerrors.E(rerrors.InvalidDataDirStructure, "", nil)
	}

	want := map[string]bool{"inodes": false, "contents": false, "security": false}
	for _, e := range entries {
		if _, ok := want[e.Name()]; ok && e.IsDir() {
			want[e.Name()] = true
		}
	}
	for _, present := range want {
		if !present {
			return rerrors.E(rerrors.InvalidDataDirStructure, "", nil)
		}
	}

	layout := content.New(root)
	if !fileExists(layout.KeySaltPath()) || !fileExists(layout.KeyEncPath()) {
		return rerrors.E(rerrors.InvalidDataDirStructure, "missing security files", nil)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureStructureCreated creates the three top-level directories (and, on
// first mount, a fresh salt/key pair is created lazily by Vault.Get) for a
// brand-new data directory.
func EnsureStructureCreated(root string) error {
	layout := content.New(root)
	for _, dir := range []string{layout.InodesDir(), layout.ContentsDir(), layout.SecurityDir()} {
		if err := content.MkdirAllSynced(dir, 0o700); err != nil {
			return rerrors.E(rerrors.Io, "create "+dir, err)
		}
	}
	return nil
}
