package harness

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/chazu/procmachine/machine"
	"github.com/fxamacker/cbor/v2"
)

// seedBound keeps seeds inside the range of exactly representable floats so
// every host derives the same sequence.
const seedBound = 1<<53 - 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("harness: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type submission struct {
	Entry machine.ProcID                       `cbor:"entry"`
	Procs map[machine.ProcID]*machine.Procedure `cbor:"procs"`
}

// Seed derives the first test-case seed of a submission from the canonical
// CBOR encoding of its entry id and procedures. Identical submissions always
// get identical seeds.
func Seed(entry machine.ProcID, procs map[machine.ProcID]*machine.Procedure) (uint64, error) {
	b, err := cborEncMode.Marshal(submission{Entry: entry, Procs: procs})
	if err != nil {
		return 0, fmt.Errorf("harness: encode submission: %w", err)
	}
	sum := sha256.Sum256(b)
	return binary.BigEndian.Uint64(sum[:8]) % seedBound, nil
}
