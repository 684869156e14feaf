package gpg

import (
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/pkg/errors"
)

// ArmoredFingerprints parses an armored secret key export in-process and
// returns the fingerprints of every primary key and subkey that carries
// private material, mirroring what `gpg -K --with-colons` lists.
func ArmoredFingerprints(r io.Reader) (FingerprintSet, error) {
	entities, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return nil, errors.Wrap(err, "read armored keyring")
	}

	set := NewFingerprintSet()
	for _, entity := range entities {
		if entity.PrivateKey == nil {
			continue
		}
		set[fingerprintOf(entity.PrimaryKey.Fingerprint)] = struct{}{}
		for _, sub := range entity.Subkeys {
			if sub.PrivateKey == nil {
				continue
			}
			set[fingerprintOf(sub.PublicKey.Fingerprint)] = struct{}{}
		}
	}
	return set, nil
}

func fingerprintOf(raw []byte) Fingerprint {
	return Fingerprint(fmt.Sprintf("%X", raw))
}
