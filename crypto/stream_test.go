package crypto

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	c := DefaultCipher{}
	key, err := c.DeriveKey("a passphrase", []byte("0123456789abcdef"))
	require.NoError(t, err)
	require.Len(t, key, c.KeyLen())
	return key
}

func TestEncryptDecryptBytesRoundTrip(t *testing.T) {
	c := DefaultCipher{}
	key := testKey(t)

	ct, err := c.EncryptBytes([]byte("top secret attribute record"), key)
	require.NoError(t, err)

	pt, err := c.DecryptBytes(ct, key)
	require.NoError(t, err)
	assert.Equal(t, "top secret attribute record", string(pt))
}

func TestDecryptBytesWrongKeyFails(t *testing.T) {
	c := DefaultCipher{}
	key := testKey(t)
	other, err := c.DeriveKey("a different passphrase", []byte("0123456789abcdef"))
	require.NoError(t, err)

	ct, err := c.EncryptBytes([]byte("payload"), key)
	require.NoError(t, err)

	_, err = c.DecryptBytes(ct, other)
	require.Error(t, err)
}

func TestEncryptDecryptNameRoundTrip(t *testing.T) {
	c := DefaultCipher{}
	key := testKey(t)

	enc, err := c.EncryptName("my-file.txt", key)
	require.NoError(t, err)
	assert.NotEqual(t, "my-file.txt", enc)

	dec, err := c.DecryptName(enc, key)
	require.NoError(t, err)
	assert.Equal(t, "my-file.txt", dec)
}

func TestHashNameIsDeterministicAndKeyed(t *testing.T) {
	c := DefaultCipher{}
	key := testKey(t)
	other, err := c.DeriveKey("other", []byte("0123456789abcdef"))
	require.NoError(t, err)

	h1 := c.HashName("same-name", key)
	h2 := c.HashName("same-name", key)
	assert.Equal(t, h1, h2)

	h3 := c.HashName("same-name", other)
	assert.NotEqual(t, h1, h3)
}

type fixedSizeProvider struct{ size uint64 }

func (f fixedSizeProvider) Size() uint64 { return f.size }

func TestStreamWriterReaderRoundTripSmall(t *testing.T) {
	c := DefaultCipher{}
	key := testKey(t)
	path := filepath.Join(t.TempDir(), "content")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := c.NewWriter(f, f, key, fixedSizeProvider{0}, nil)
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, w.Close())

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()

	r, err := c.NewReader(rf, key)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStreamReaderSeekAndReread(t *testing.T) {
	c := DefaultCipher{}
	key := testKey(t)
	path := filepath.Join(t.TempDir(), "content")

	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := c.NewWriter(f, f, key, fixedSizeProvider{0}, nil)
	require.NoError(t, err)
	payload := []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()
	r, err := c.NewReader(rf, key)
	require.NoError(t, err)
	defer r.Close()

	pos, err := r.Seek(10, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	buf := make([]byte, 5)
	n, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, payload[10:15], buf[:n])
}
