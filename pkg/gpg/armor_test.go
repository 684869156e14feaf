package gpg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func armoredSecretKey(t *testing.T) ([]byte, *openpgp.Entity) {
	t.Helper()
	entity, err := openpgp.NewEntity("SecureDrop", "test", "securedrop@example.org", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, nil))
	require.NoError(t, w.Close())
	return buf.Bytes(), entity
}

func TestArmoredFingerprints(t *testing.T) {
	armored, entity := armoredSecretKey(t)

	got, err := ArmoredFingerprints(bytes.NewReader(armored))
	require.NoError(t, err)

	primary := fingerprintOf(entity.PrimaryKey.Fingerprint)
	assert.Len(t, string(primary), FingerprintLength)
	assert.True(t, got.Has(primary))
	assert.Equal(t, 1+len(entity.Subkeys), got.Len())
}

func TestArmoredFingerprints_Garbage(t *testing.T) {
	_, err := ArmoredFingerprints(strings.NewReader("not a key"))
	assert.Error(t, err)
}
