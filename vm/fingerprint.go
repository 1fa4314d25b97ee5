package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Fingerprint is a content hash of a compiled lambda. Two lambdas with
// the same code, counts, names and literals have the same fingerprint.
type Fingerprint [sha256.Size]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first eight hex digits.
func (f Fingerprint) Short() string {
	return f.String()[:8]
}

// fingerprintRecord is the canonical CBOR shape hashed for a fingerprint.
type fingerprintRecord struct {
	Code     [][3]int64 `cbor:"1,keyasint"`
	Literals []string   `cbor:"2,keyasint"`
	ArgCount int        `cbor:"3,keyasint"`
	VarCount int        `cbor:"4,keyasint"`
	Names    []string   `cbor:"5,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Fingerprint hashes the canonical CBOR encoding of cl. Nested compiled
// lambdas in the literal table contribute their own fingerprints.
func (cl *CompiledLambda) Fingerprint() Fingerprint {
	data, err := cl.encode()
	if err != nil {
		panic(fmt.Sprintf("vm: fingerprint encoding failed: %v", err))
	}
	return sha256.Sum256(data)
}

func (cl *CompiledLambda) encode() ([]byte, error) {
	rec := fingerprintRecord{
		Code:     make([][3]int64, len(cl.Code)),
		Literals: make([]string, len(cl.Literals)),
		ArgCount: cl.ArgCount,
		VarCount: cl.VarCount,
		Names:    cl.Names,
	}
	for i, in := range cl.Code {
		rec.Code[i] = [3]int64{int64(in.Op), int64(in.FrameOffset), int64(in.Index)}
	}
	for i, lit := range cl.Literals {
		if child, ok := lit.(*CompiledLambda); ok {
			rec.Literals[i] = "lambda:" + child.Fingerprint().String()
			continue
		}
		rec.Literals[i] = lit.Kind().String() + ":" + Sprint(lit)
	}
	return cborEncMode.Marshal(rec)
}
