package hostfuncs

import (
	"context"
	"crypto/md5"  //nolint:gosec // checksums only
	"crypto/sha1" //nolint:gosec // checksums only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// HashRequest hashes Data (raw bytes, base64 in JSON) or Text.
type HashRequest struct {
	Algorithm string `json:"algorithm"`
	Text      string `json:"text,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

// HashResponse carries the digest.
type HashResponse struct {
	HexDigest  string `json:"hexdigest"`
	DigestSize int    `json:"digest_size"`
	BlockSize  int    `json:"block_size"`
}

func mustHash(newFn func(key []byte) (hash.Hash, error)) func() hash.Hash {
	return func() hash.Hash {
		h, err := newFn(nil)
		if err != nil {
			panic(err)
		}
		return h
	}
}

var hashAlgorithms = map[string]func() hash.Hash{
	"md5":      md5.New,
	"sha1":     sha1.New,
	"sha224":   sha256.New224,
	"sha256":   sha256.New,
	"sha384":   sha512.New384,
	"sha512":   sha512.New,
	"sha3_224": func() hash.Hash { return sha3.New224() },
	"sha3_256": func() hash.Hash { return sha3.New256() },
	"sha3_384": func() hash.Hash { return sha3.New384() },
	"sha3_512": func() hash.Hash { return sha3.New512() },
	"blake2b":  mustHash(blake2b.New512),
	"blake2s":  mustHash(blake2s.New256),
}

// HashAlgorithms returns the supported algorithm names, sorted.
func HashAlgorithms() []string {
	names := make([]string, 0, len(hashAlgorithms))
	for name := range hashAlgorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HashlibBundle returns the members of the hashlib module.
func HashlibBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"digest": NewJSONHandler(func(_ context.Context, req HashRequest) (HashResponse, error) {
			newHash, ok := hashAlgorithms[req.Algorithm]
			if !ok {
				return HashResponse{}, argErrorf("unsupported hash type %s", req.Algorithm)
			}
			h := newHash()
			h.Write(req.Data)
			h.Write([]byte(req.Text))
			return HashResponse{
				HexDigest:  hex.EncodeToString(h.Sum(nil)),
				DigestSize: h.Size(),
				BlockSize:  h.BlockSize(),
			}, nil
		}),
		"algorithms_available": NewJSONHandler(func(context.Context, struct{}) (ListResponse, error) {
			return ListResponse{Values: HashAlgorithms()}, nil
		}),
	})
}

func hashlibModule() ModuleDef {
	return ModuleDef{
		Name:     "hashlib",
		Doc:      "message digests",
		New:      static(HashlibBundle()),
		Requests: map[string]any{"digest": HashRequest{}},
	}
}
