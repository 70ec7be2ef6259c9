package pkginstall

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// armorDecode unwraps an ASCII-armored detached signature to its raw body.
func armorDecode(armored []byte) (io.Reader, error) {
	block, err := armor.Decode(bytes.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("decode armor: %w", err)
	}
	if block.Type != "PGP SIGNATURE" {
		return nil, fmt.Errorf("unexpected armor type %q", block.Type)
	}
	return block.Body, nil
}
