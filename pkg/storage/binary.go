package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/types"
	"github.com/google/uuid"
)

// sentinelAbsent marks an absent Operation.Amount in the binary wire
// format, per the fixed-width record layout.
const sentinelAbsent = math.MaxUint64

// binaryRecordSize is id, account, subcategory, summa (4 x int64) plus
// amount and two reserved fields (3 x uint64).
const binaryRecordSize = 7 * 8

// BinarySource is the AES-256-GCM encrypted, one-file-per-bucket
// BucketSource. The encryption key is supplied at construction; the codec
// itself is grounded on this repo's AES-256-GCM secret-encryption helper.
type BinarySource struct {
	key []byte
}

// NewBinarySource builds a BinarySource from a 32-byte AES-256 key.
func NewBinarySource(key []byte) (*BinarySource, error) {
	if len(key) != 32 {
		return nil, errs.New(errs.InvalidInput, "binary provider key must be 32 bytes")
	}
	return &BinarySource{key: key}, nil
}

func (s *BinarySource) Name() string { return "binary" }

func (s *BinarySource) datesDir(root string) string {
	return filepath.Join(root, "dates")
}

func (s *BinarySource) bucketPath(root string, key types.BucketKey) string {
	return filepath.Join(s.datesDir(root), strconv.FormatInt(int64(key), 10)+".bin")
}

// ParseDate interprets a bucket file's base name (without extension) as a
// decimal bucket key.
func (s *BinarySource) ParseDate(path string) (types.BucketKey, error) {
	base := filepath.Base(path)
	base = base[:len(base)-len(filepath.Ext(base))]
	n, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.InvalidData, "parse bucket file name", err)
	}
	return types.BucketKey(n), nil
}

// ListFilesForKey returns the single encrypted file for key, if present.
func (s *BinarySource) ListFilesForKey(root string, key types.BucketKey) ([]FileRef, error) {
	path := s.bucketPath(root, key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.IO, "stat bucket file", err)
	}
	return []FileRef{{Path: path, Key: key}}, nil
}

func (s *BinarySource) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "create GCM", err)
	}
	return gcm, nil
}

// Load decrypts the bucket file and decodes its fixed-width record
// layout: uint64 count, followed by count records of
// (id, account, subcategory, summa int64; amount uint64 with
// math.MaxUint64 meaning absent; two reserved uint64 fields).
func (s *BinarySource) Load(files []FileRef) (*types.Bucket, error) {
	bucket := types.NewBucket()
	for _, f := range files {
		ciphertext, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, errs.Wrap(errs.IO, "read bucket file", err)
		}
		plaintext, err := s.decrypt(ciphertext)
		if err != nil {
			return nil, err
		}
		ops, err := decodeRecords(plaintext)
		if err != nil {
			return nil, err
		}
		bucket.Operations = append(bucket.Operations, ops...)
	}
	return bucket, nil
}

func (s *BinarySource) decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errs.New(errs.InvalidData, "bucket file too short to contain a nonce")
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "decrypt bucket file", err)
	}
	return plaintext, nil
}

func decodeRecords(plaintext []byte) ([]types.Operation, error) {
	if len(plaintext) < 8 {
		return nil, errs.New(errs.InvalidData, "bucket plaintext too short for record count")
	}
	count := binary.LittleEndian.Uint64(plaintext[:8])
	offset := 8
	want := offset + int(count)*binaryRecordSize
	if len(plaintext) < want {
		return nil, errs.New(errs.InvalidData, "bucket plaintext truncated")
	}

	ops := make([]types.Operation, 0, count)
	for i := uint64(0); i < count; i++ {
		rec := plaintext[offset : offset+binaryRecordSize]
		offset += binaryRecordSize

		id := int64(binary.LittleEndian.Uint64(rec[0:8]))
		account := int64(binary.LittleEndian.Uint64(rec[8:16]))
		subcategory := int64(binary.LittleEndian.Uint64(rec[16:24]))
		summa := int64(binary.LittleEndian.Uint64(rec[24:32]))
		amountRaw := binary.LittleEndian.Uint64(rec[32:40])

		op := types.Operation{
			Date:        types.KeyDate(id),
			Account:     types.AccountID(account),
			Subcategory: types.SubcategoryID(subcategory),
			Summa:       summa,
		}
		if amountRaw != sentinelAbsent {
			v := amountRaw
			op.Amount = &v
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Save encodes bucket into the fixed-width record layout, encrypts it
// with AES-256-GCM using a fresh random nonce prefix, and atomically
// replaces the bucket file.
func (s *BinarySource) Save(bucket *types.Bucket, root string, key types.BucketKey) error {
	dir := s.datesDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.IO, "create dates directory", err)
	}

	plaintext := encodeRecords(bucket.Operations)
	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return err
	}

	tmpName := filepath.Join(dir, "."+uuid.New().String()+".tmp")
	f, err := os.Create(tmpName)
	if err != nil {
		return errs.Wrap(errs.IO, "create temp bucket file", err)
	}
	if _, err := f.Write(ciphertext); err != nil {
		f.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.IO, "write temp bucket file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.IO, "sync temp bucket file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.IO, "close temp bucket file", err)
	}

	if err := os.Rename(tmpName, s.bucketPath(root, key)); err != nil {
		return errs.Wrap(errs.IO, "rename temp bucket file", err)
	}
	return nil
}

func (s *BinarySource) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.Wrap(errs.IO, "generate nonce", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func encodeRecords(ops []types.Operation) []byte {
	buf := make([]byte, 8+len(ops)*binaryRecordSize)
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(ops)))
	offset := 8
	for _, op := range ops {
		rec := buf[offset : offset+binaryRecordSize]
		binary.LittleEndian.PutUint64(rec[0:8], uint64(op.Date))
		binary.LittleEndian.PutUint64(rec[8:16], uint64(op.Account))
		binary.LittleEndian.PutUint64(rec[16:24], uint64(op.Subcategory))
		binary.LittleEndian.PutUint64(rec[24:32], uint64(op.Summa))
		if op.Amount != nil {
			binary.LittleEndian.PutUint64(rec[32:40], *op.Amount)
		} else {
			binary.LittleEndian.PutUint64(rec[32:40], sentinelAbsent)
		}
		// rec[40:48] and rec[48:56] are reserved, left zero.
		offset += binaryRecordSize
	}
	return buf
}

// Scan walks <root>/dates for *.bin files and groups them by bucket key
// (always one file per key for this provider).
func (s *BinarySource) Scan(root string) (map[types.BucketKey][]FileRef, error) {
	dir := s.datesDir(root)
	result := make(map[types.BucketKey][]FileRef)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, errs.Wrap(errs.IO, "read dates directory", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".bin" {
			continue
		}
		key, err := s.ParseDate(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if key < 0 {
			return nil, errs.New(errs.InvalidInput, "invalid date: negative bucket key")
		}
		result[key] = []FileRef{{Path: filepath.Join(dir, e.Name()), Key: key}}
	}
	return result, nil
}
