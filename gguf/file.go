// Package gguf parses the GGUF (v3) container format: a fixed-order header,
// a typed metadata key-value table, a tensor-info table, then tensor data
// aligned to a 32-byte boundary. Local files are memory-mapped; remote files
// are read lazily over HTTP range requests. Tensor bytes are dequantized to
// f32 on demand.
package gguf

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/crypto/blake2b"

	"github.com/mrcloudchase/inference-runtime/util/httpx"
	"github.com/mrcloudchase/inference-runtime/util/osx"
)

// Magic is the four-byte value every GGUF file must start with.
const Magic = "GGUF"

// Version is the only GGUF version this reader accepts.
const Version = 3

// alignment is the fixed byte boundary tensor data is aligned to.
const alignment = 32

// Header is the fixed-order prefix of a GGUF file.
type Header struct {
	Version         uint32
	TensorCount     uint64
	MetadataKVCount uint64
	MetadataKV      KVs
}

// dataSource is the minimal random-access surface File needs over the
// underlying bytes, satisfied by both *osx.MmapFile (local) and
// *httpx.SeekerFile (remote, range-request backed).
type dataSource interface {
	io.Closer
	ReadAt(p []byte, off int64) (int, error)
	Len() int64
}

// File is an immutable snapshot of one GGUF file: its header, tensor-info
// table, a random-access view of the underlying bytes, and the byte offset
// where tensor data begins. Nothing about a File is mutated after parsing.
type File struct {
	Header      Header
	TensorInfos TensorInfos
	DataOffset  int64

	src dataSource
}

// Close releases the File's underlying local mmap or remote connection. The
// File must not be used after Close returns.
func (f *File) Close() error {
	if f.src == nil {
		return nil
	}
	return f.src.Close()
}

// ParseFile parses a local GGUF file, memory-mapping it for the lifetime of
// the returned File.
func ParseFile(path string) (*File, error) {
	mf, err := osx.OpenMmapFile(path)
	if err != nil {
		return nil, &IOError{Stage: "open", Err: err}
	}
	return parse(mf)
}

// ParseRemote parses a GGUF file served over HTTP(S), reading only the
// header, metadata, and tensor-info table eagerly; tensor bytes are fetched
// lazily via range requests as Dequantize is called.
func ParseRemote(ctx context.Context, rawURL string, opts ...ReadOption) (*File, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("gguf: invalid url %q: %w", rawURL, err)
	}

	req, err := httpx.NewGetRequestWithContext(ctx, rawURL)
	if err != nil {
		return nil, &IOError{Stage: "request", Err: err}
	}
	if o.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+o.BearerToken)
	}

	clientOpts := httpx.ClientOptions()
	if o.Debug {
		clientOpts = clientOpts.WithDebug()
	}
	if o.SkipTLSVerification {
		clientOpts = clientOpts.WithoutInsecureVerify()
	}
	if o.SkipProxy {
		clientOpts = clientOpts.WithoutProxy()
	} else if o.ProxyURL != nil {
		proxyURL := o.ProxyURL
		clientOpts = clientOpts.WithProxy(http.ProxyURL(proxyURL))
	}
	if o.SkipDNSCache {
		clientOpts = clientOpts.WithoutDNSCache()
	}
	cli := httpx.Client(clientOpts)

	fileOpts := httpx.SeekerFileOptions()
	if o.BufferSize > 0 {
		fileOpts = fileOpts.WithBufferSize(o.BufferSize)
	}

	sf, err := httpx.OpenSeekerFile(cli, req, fileOpts)
	if err != nil {
		return nil, &IOError{Stage: "open remote", Err: err}
	}

	f, err := parse(sf)
	if err != nil {
		return nil, err
	}

	if o.BLAKE2bChecksum != "" {
		if err := verifyBLAKE2b(f, o.BLAKE2bChecksum); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// verifyBLAKE2b hashes the eagerly-read header/metadata/tensor-info prefix
// of f (bytes [0, DataOffset)) and compares it against a known BLAKE2b-256
// digest. Lazily-fetched tensor data beyond DataOffset is not covered.
func verifyBLAKE2b(f *File, wantHex string) error {
	buf := make([]byte, f.DataOffset)
	if _, err := f.src.ReadAt(buf, 0); err != nil {
		return &IOError{Stage: "checksum read", Err: err}
	}
	sum := blake2b.Sum256(buf)
	got := hex.EncodeToString(sum[:])
	if got != wantHex {
		return &ChecksumMismatchError{Want: wantHex, Got: got}
	}
	return nil
}

// readAtReader adapts a dataSource's ReadAt to a sequential io.ReadSeeker for
// the fixed-order header/metadata/tensor-info parse.
type readAtReader struct {
	src dataSource
	pos int64
}

func (r *readAtReader) Read(p []byte) (int, error) {
	n, err := r.src.ReadAt(p, r.pos)
	r.pos += int64(n)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (r *readAtReader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = r.pos
	case io.SeekEnd:
		base = r.src.Len()
	}
	r.pos = base + offset
	return r.pos, nil
}

func parse(src dataSource) (*File, error) {
	br := &readAtReader{src: src}

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, &IOError{Stage: "magic", Err: err}
	}
	if string(magic[:]) != Magic {
		return nil, ErrInvalidMagic
	}

	var versionBuf [4]byte
	if _, err := io.ReadFull(br, versionBuf[:]); err != nil {
		return nil, &IOError{Stage: "version", Err: err}
	}
	version := binary.LittleEndian.Uint32(versionBuf[:])
	if version != Version {
		return nil, &UnsupportedVersionError{Version: version}
	}

	rd := reader{version: version, f: br}

	var f File
	f.src = src
	f.Header.Version = version

	tensorCount, err := rd.readUint64()
	if err != nil {
		return nil, fmt.Errorf("read tensor count: %w", err)
	}
	f.Header.TensorCount = tensorCount

	kvCount, err := rd.readUint64()
	if err != nil {
		return nil, fmt.Errorf("read metadata kv count: %w", err)
	}
	f.Header.MetadataKVCount = kvCount

	kvs := make(KVs, kvCount)
	for i := uint64(0); i < kvCount; i++ {
		kvs[i], err = rd.readKV()
		if err != nil {
			return nil, fmt.Errorf("read metadata kv %d: %w", i, err)
		}
	}
	f.Header.MetadataKV = kvs

	infos := make(TensorInfos, tensorCount)
	for i := uint64(0); i < tensorCount; i++ {
		infos[i], err = rd.readTensorInfo()
		if err != nil {
			return nil, fmt.Errorf("read tensor info %d: %w", i, err)
		}
	}
	f.TensorInfos = infos

	p := br.pos
	f.DataOffset = ((p + alignment - 1) / alignment) * alignment

	if f.DataOffset > src.Len() {
		return nil, fmt.Errorf("gguf: computed data offset %d exceeds file size %d", f.DataOffset, src.Len())
	}

	return &f, nil
}

// TensorData returns the raw on-disk bytes for a tensor.
func (f *File) TensorData(ti TensorInfo) ([]byte, error) {
	size, err := ti.DataSize()
	if err != nil {
		return nil, err
	}
	start := f.DataOffset + int64(ti.Offset)
	buf := make([]byte, size)
	if _, err := f.src.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("gguf: read tensor %q data: %w", ti.Name, err)
	}
	return buf, nil
}

// Dequantize returns the f32 values for a named tensor.
func (f *File) Dequantize(name string) ([]float32, error) {
	ti, err := f.TensorInfos.Get(name)
	if err != nil {
		return nil, err
	}
	raw, err := f.TensorData(ti)
	if err != nil {
		return nil, err
	}
	return dequantize(ti.Type, raw, ti.Numel())
}
