package verifier

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// Version bytes of pay-to-pubkey-hash addresses.
const (
	MainNetPubKeyHashID byte = 0x00
	TestNetPubKeyHashID byte = 0x6f
)

const messageMagic = "Bitcoin Signed Message:\n"

const (
	compactSigLen  = 65
	hash160Len     = 20
	checksumLen    = 4
	p2pkhAddrBytes = 1 + hash160Len + checksumLen
)

// BitcoinMessage verifies signatures produced by the "signmessage" RPC of
// Bitcoin wallets: a base64 compact recoverable secp256k1 signature over the
// double SHA-256 of the magic-prefixed message.
type BitcoinMessage struct {
	versions []byte
}

func NewBitcoinMessage(versions ...byte) *BitcoinMessage {
	return &BitcoinMessage{versions: versions}
}

func (v *BitcoinMessage) Verify(message, address, signature string) bool {
	version, want, ok := decodeP2PKH(address)
	if !ok || !v.accepts(version) {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != compactSigLen {
		return false
	}

	pub, compressed, err := ecdsa.RecoverCompact(sig, MessageHash(message))
	if err != nil {
		return false
	}
	var serialized []byte
	if compressed {
		serialized = pub.SerializeCompressed()
	} else {
		serialized = pub.SerializeUncompressed()
	}
	return bytes.Equal(hash160(serialized), want)
}

func (v *BitcoinMessage) accepts(version byte) bool {
	for _, allowed := range v.versions {
		if allowed == version {
			return true
		}
	}
	return false
}

// MessageHash is the digest a Bitcoin wallet signs for message.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	writeVarInt(&buf, uint64(len(messageMagic)))
	buf.WriteString(messageMagic)
	writeVarInt(&buf, uint64(len(message)))
	buf.WriteString(message)
	return doubleSHA256(buf.Bytes())
}

// EncodeP2PKH builds the Base58Check address of a serialized public key.
func EncodeP2PKH(version byte, pubKey []byte) string {
	payload := make([]byte, 0, p2pkhAddrBytes)
	payload = append(payload, version)
	payload = append(payload, hash160(pubKey)...)
	payload = append(payload, doubleSHA256(payload)[:checksumLen]...)
	return base58.Encode(payload)
}

func decodeP2PKH(address string) (byte, []byte, bool) {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != p2pkhAddrBytes {
		return 0, nil, false
	}
	body, checksum := raw[:len(raw)-checksumLen], raw[len(raw)-checksumLen:]
	if !bytes.Equal(doubleSHA256(body)[:checksumLen], checksum) {
		return 0, nil, false
	}
	return body[0], body[1:], true
}

func hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func writeVarInt(buf *bytes.Buffer, n uint64) {
	var tmp [9]byte
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		tmp[0] = 0xfd
		binary.LittleEndian.PutUint16(tmp[1:], uint16(n))
		buf.Write(tmp[:3])
	case n <= 0xffffffff:
		tmp[0] = 0xfe
		binary.LittleEndian.PutUint32(tmp[1:], uint32(n))
		buf.Write(tmp[:5])
	default:
		tmp[0] = 0xff
		binary.LittleEndian.PutUint64(tmp[1:], n)
		buf.Write(tmp[:9])
	}
}
