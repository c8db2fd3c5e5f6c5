package validatorpk

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const rawHex = "045b86101f804f3f4f2012ef31fff807e87de579a3faa7947d1b487a810e35dc2c3b6071ac465046634b5f4a8e09bf8e1f2e7eccb699356b9e6fd496ca4b1677d1"

func TestPubKeyText(t *testing.T) {
	require := require.New(t)

	exp := PubKey{Type: Types.Secp256k1, Raw: common.FromHex(rawHex)}
	for _, in := range []string{"c0" + rawHex, "0xc0" + rawHex} {
		got, err := FromString(in)
		require.NoError(err)
		require.Equal(exp, got)
	}
	require.Equal("0xc0"+rawHex, exp.String())

	for _, bad := range []string{"", "0x", "-"} {
		_, err := FromString(bad)
		require.Error(err, bad)
	}

	require.True(PubKey{}.Empty())
	require.False(exp.Empty())

	buf, err := json.Marshal(&exp)
	require.NoError(err)
	var decoded PubKey
	require.NoError(json.Unmarshal(buf, &decoded))
	require.Equal(exp, decoded)
}

func TestPubKeyAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	pk := FromECDSA(&key.PublicKey)
	addr, err := pk.Address()
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	_, err = PubKey{Type: 0x01, Raw: pk.Raw}.Address()
	require.ErrorIs(t, err, ErrUnsupportedKey)
}

func TestSecp256k1Verifier(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	signer := crypto.PubkeyToAddress(key.PublicKey)
	digest := crypto.Keccak256Hash([]byte("batch"))

	sig, err := Sign(digest, key)
	require.NoError(err)

	var v Secp256k1Verifier
	got, err := v.Recover(digest, sig)
	require.NoError(err)
	require.Equal(signer, got)

	legacy := common.CopyBytes(sig)
	legacy[crypto.RecoveryIDOffset] += 27
	got, err = v.Recover(digest, legacy)
	require.NoError(err)
	require.Equal(signer, got)

	// a different digest recovers some other address
	got, err = v.Recover(crypto.Keccak256Hash([]byte("other")), sig)
	if err == nil {
		require.NotEqual(signer, got)
	}

	_, err = v.Recover(digest, sig[:64])
	require.ErrorIs(err, ErrMalformedSignature)
}
