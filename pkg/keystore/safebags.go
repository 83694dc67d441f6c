// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"hash"
	"unicode/utf16"

	"github.com/jeremyhahn/go-turbocharger/pkg/encoding"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/pbkdf2"
)

var (
	oidDataContentType          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidEncryptedDataContentType = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}

	oidKeyBag         = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 1}
	oidShroudedKeyBag = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 2}
	oidCertBag        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 3}
	oidSecretBag      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 5}
	oidCertTypeX509   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 22, 1}

	oidFriendlyName = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 20}
	oidLocalKeyID   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 21}

	oidPBES2          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	oidPBKDF2         = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}
	oidPBEWith3DESCBC = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 3}

	oidHMACWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}
	oidHMACWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
	oidHMACWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 10}
	oidHMACWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 11}

	oidAES128CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 2}
	oidAES192CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 22}
	oidAES256CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}

	oidSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

var (
	errMalformedPFX     = errors.New("pkcs12: malformed container")
	errIncorrectPFXPass = errors.New("pkcs12: incorrect password")
	errPFXDecryption    = errors.New("pkcs12: decryption error")
)

const pkcs12KeyID, pkcs12IVID, pkcs12MACID = 1, 2, 3

// secretEntry is a symmetric key held in a secretBag.
type secretEntry struct {
	name       string
	localKeyID string
	algorithm  asn1.ObjectIdentifier
	key        []byte
}

type algorithmIdentifier struct {
	oid asn1.ObjectIdentifier
	// params holds the raw parameter TLV, empty when absent.
	params cryptobyte.String
}

type pfxPassword struct {
	utf8 []byte
	bmp  []byte
}

// readSafeBags walks a PFX bag by bag. It covers what ToPEM rejects: secret
// key entries and bags carrying attributes other than friendlyName and
// localKeyId. Keys and certificates come back as ToPEM-style blocks.
func readSafeBags(data []byte, passphrase string) ([]*pem.Block, []*secretEntry, error) {
	input := cryptobyte.String(data)
	var (
		pfx      cryptobyte.String
		version  int
		authSafe []byte
	)
	if !input.ReadASN1(&pfx, cbasn1.SEQUENCE) || !input.Empty() ||
		!pfx.ReadASN1Integer(&version) || version != 3 {
		return nil, nil, errMalformedPFX
	}
	contentType, content, err := readContentInfo(&pfx)
	if err != nil {
		return nil, nil, err
	}
	if !contentType.Equal(oidDataContentType) || !content.ReadASN1Bytes(&authSafe, cbasn1.OCTET_STRING) {
		return nil, nil, errMalformedPFX
	}

	pw, err := verifyMAC(&pfx, authSafe, passphrase)
	if err != nil {
		return nil, nil, err
	}

	var (
		safes   cryptobyte.String
		blocks  []*pem.Block
		secrets []*secretEntry
	)
	in := cryptobyte.String(authSafe)
	if !in.ReadASN1(&safes, cbasn1.SEQUENCE) {
		return nil, nil, errMalformedPFX
	}
	for !safes.Empty() {
		contentType, content, err := readContentInfo(&safes)
		if err != nil {
			return nil, nil, err
		}
		var safeContents []byte
		switch {
		case contentType.Equal(oidDataContentType):
			if !content.ReadASN1Bytes(&safeContents, cbasn1.OCTET_STRING) {
				return nil, nil, errMalformedPFX
			}
		case contentType.Equal(oidEncryptedDataContentType):
			if safeContents, err = decryptEncryptedData(content, pw); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, fmt.Errorf("%w: unsupported content type %s", errMalformedPFX, contentType)
		}
		b, s, err := readSafeContents(safeContents, pw)
		if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, b...)
		secrets = append(secrets, s...)
	}
	return blocks, secrets, nil
}

func readContentInfo(s *cryptobyte.String) (asn1.ObjectIdentifier, cryptobyte.String, error) {
	var (
		info, content cryptobyte.String
		contentType   asn1.ObjectIdentifier
	)
	if !s.ReadASN1(&info, cbasn1.SEQUENCE) ||
		!info.ReadASN1ObjectIdentifier(&contentType) ||
		!info.ReadASN1(&content, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, nil, errMalformedPFX
	}
	return contentType, content, nil
}

func readAlgorithm(s *cryptobyte.String) (algorithmIdentifier, error) {
	var (
		seq cryptobyte.String
		alg algorithmIdentifier
	)
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) || !seq.ReadASN1ObjectIdentifier(&alg.oid) {
		return alg, errMalformedPFX
	}
	alg.params = seq
	return alg, nil
}

func hashForOID(oid asn1.ObjectIdentifier) (func() hash.Hash, bool) {
	switch {
	case oid.Equal(oidSHA1), oid.Equal(oidHMACWithSHA1):
		return sha1.New, true
	case oid.Equal(oidSHA256), oid.Equal(oidHMACWithSHA256):
		return sha256.New, true
	case oid.Equal(oidSHA384), oid.Equal(oidHMACWithSHA384):
		return sha512.New384, true
	case oid.Equal(oidSHA512), oid.Equal(oidHMACWithSHA512):
		return sha512.New, true
	}
	return nil, false
}

// verifyMAC checks the integrity MAC and returns the password encodings that
// opened it. An empty passphrase is tried as a terminated BMPString first
// and then as no password at all.
func verifyMAC(pfx *cryptobyte.String, authSafe []byte, passphrase string) (pfxPassword, error) {
	pw := pfxPassword{utf8: []byte(passphrase), bmp: bmpString(passphrase)}
	if pfx.Empty() {
		if passphrase != "" {
			return pw, fmt.Errorf("%w: no MAC in data", errMalformedPFX)
		}
		return pw, nil
	}

	var (
		macData, digestInfo cryptobyte.String
		digest, salt        []byte
		iterations          int
	)
	if !pfx.ReadASN1(&macData, cbasn1.SEQUENCE) || !macData.ReadASN1(&digestInfo, cbasn1.SEQUENCE) {
		return pw, errMalformedPFX
	}
	alg, err := readAlgorithm(&digestInfo)
	if err != nil {
		return pw, err
	}
	if !digestInfo.ReadASN1Bytes(&digest, cbasn1.OCTET_STRING) ||
		!macData.ReadASN1Bytes(&salt, cbasn1.OCTET_STRING) ||
		!macData.ReadOptionalASN1Integer(&iterations, cbasn1.INTEGER, 1) {
		return pw, errMalformedPFX
	}
	newHash, ok := hashForOID(alg.oid)
	if !ok {
		return pw, fmt.Errorf("%w: unsupported MAC algorithm %s", errMalformedPFX, alg.oid)
	}

	candidates := [][]byte{pw.bmp}
	if passphrase == "" {
		candidates = append(candidates, nil)
	}
	for _, candidate := range candidates {
		key := pkcs12KDF(newHash, salt, candidate, iterations, pkcs12MACID, newHash().Size())
		mac := hmac.New(newHash, key)
		mac.Write(authSafe)
		if hmac.Equal(mac.Sum(nil), digest) {
			pw.bmp = candidate
			return pw, nil
		}
	}
	return pw, errIncorrectPFXPass
}

func decryptEncryptedData(content cryptobyte.String, pw pfxPassword) ([]byte, error) {
	var (
		encryptedData, encryptedContentInfo cryptobyte.String
		version                             int
		contentType                         asn1.ObjectIdentifier
		ciphertext                          []byte
	)
	if !content.ReadASN1(&encryptedData, cbasn1.SEQUENCE) ||
		!encryptedData.ReadASN1Integer(&version) ||
		!encryptedData.ReadASN1(&encryptedContentInfo, cbasn1.SEQUENCE) ||
		!encryptedContentInfo.ReadASN1ObjectIdentifier(&contentType) {
		return nil, errMalformedPFX
	}
	alg, err := readAlgorithm(&encryptedContentInfo)
	if err != nil {
		return nil, err
	}
	if !encryptedContentInfo.ReadASN1Bytes(&ciphertext, cbasn1.Tag(0).ContextSpecific()) {
		return nil, errMalformedPFX
	}
	return decrypt(alg, ciphertext, pw)
}

func readSafeContents(der []byte, pw pfxPassword) ([]*pem.Block, []*secretEntry, error) {
	var (
		bags    cryptobyte.String
		blocks  []*pem.Block
		secrets []*secretEntry
	)
	in := cryptobyte.String(der)
	if !in.ReadASN1(&bags, cbasn1.SEQUENCE) {
		return nil, nil, errMalformedPFX
	}
	for !bags.Empty() {
		var (
			bag, value, attributes cryptobyte.String
			bagID                  asn1.ObjectIdentifier
			hasAttributes          bool
		)
		if !bags.ReadASN1(&bag, cbasn1.SEQUENCE) ||
			!bag.ReadASN1ObjectIdentifier(&bagID) ||
			!bag.ReadASN1(&value, cbasn1.Tag(0).Constructed().ContextSpecific()) ||
			!bag.ReadOptionalASN1(&attributes, &hasAttributes, cbasn1.SET) {
			return nil, nil, errMalformedPFX
		}
		name, localKeyID, err := readBagAttributes(attributes)
		if err != nil {
			return nil, nil, err
		}
		headers := map[string]string{}
		if name != "" {
			headers[headerFriendlyName] = name
		}
		if localKeyID != "" {
			headers[headerLocalKeyID] = localKeyID
		}

		switch {
		case bagID.Equal(oidKeyBag), bagID.Equal(oidShroudedKeyBag):
			der := []byte(value)
			if bagID.Equal(oidShroudedKeyBag) {
				if der, err = decryptPrivateKeyInfo(value, pw); err != nil {
					return nil, nil, err
				}
			}
			blocks = append(blocks, &pem.Block{Type: encoding.PEMTypePrivateKey, Headers: headers, Bytes: der})
		case bagID.Equal(oidCertBag):
			der, ok, err := readCertBag(value)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				blocks = append(blocks, &pem.Block{Type: encoding.PEMTypeCertificate, Headers: headers, Bytes: der})
			}
		case bagID.Equal(oidSecretBag):
			secret, err := readSecretBag(value, pw)
			if err != nil {
				return nil, nil, err
			}
			secret.name = name
			secret.localKeyID = localKeyID
			secrets = append(secrets, secret)
		}
	}
	return blocks, secrets, nil
}

// readBagAttributes returns the friendlyName and the hex localKeyId.
// Other attributes are ignored.
func readBagAttributes(attributes cryptobyte.String) (name, localKeyID string, err error) {
	for !attributes.Empty() {
		var (
			attribute, values cryptobyte.String
			attrID            asn1.ObjectIdentifier
		)
		if !attributes.ReadASN1(&attribute, cbasn1.SEQUENCE) ||
			!attribute.ReadASN1ObjectIdentifier(&attrID) ||
			!attribute.ReadASN1(&values, cbasn1.SET) {
			return "", "", errMalformedPFX
		}
		var raw []byte
		switch {
		case attrID.Equal(oidFriendlyName):
			if !values.ReadASN1Bytes(&raw, cbasn1.Tag(30)) || len(raw)%2 != 0 {
				return "", "", errMalformedPFX
			}
			name = decodeBMPString(raw)
		case attrID.Equal(oidLocalKeyID):
			if !values.ReadASN1Bytes(&raw, cbasn1.OCTET_STRING) {
				return "", "", errMalformedPFX
			}
			localKeyID = hex.EncodeToString(raw)
		}
	}
	return name, localKeyID, nil
}

func readCertBag(value cryptobyte.String) ([]byte, bool, error) {
	var (
		bag, explicit cryptobyte.String
		certType      asn1.ObjectIdentifier
		der           []byte
	)
	if !value.ReadASN1(&bag, cbasn1.SEQUENCE) ||
		!bag.ReadASN1ObjectIdentifier(&certType) ||
		!bag.ReadASN1(&explicit, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, false, errMalformedPFX
	}
	if !certType.Equal(oidCertTypeX509) {
		return nil, false, nil
	}
	if !explicit.ReadASN1Bytes(&der, cbasn1.OCTET_STRING) {
		return nil, false, errMalformedPFX
	}
	return der, true, nil
}

// readSecretBag accepts the Java layout: a secretTypeId of keyBag or
// pkcs8ShroudedKeyBag with the PrivateKeyInfo, plain or encrypted, held in
// an OCTET STRING or inline.
func readSecretBag(value cryptobyte.String, pw pfxPassword) (*secretEntry, error) {
	var (
		bag, explicit cryptobyte.String
		secretType    asn1.ObjectIdentifier
	)
	if !value.ReadASN1(&bag, cbasn1.SEQUENCE) ||
		!bag.ReadASN1ObjectIdentifier(&secretType) ||
		!bag.ReadASN1(&explicit, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, errMalformedPFX
	}
	inner := explicit
	if explicit.PeekASN1Tag(cbasn1.OCTET_STRING) {
		var raw []byte
		if !explicit.ReadASN1Bytes(&raw, cbasn1.OCTET_STRING) {
			return nil, errMalformedPFX
		}
		inner = raw
	}

	var (
		der []byte
		err error
	)
	switch {
	case secretType.Equal(oidShroudedKeyBag):
		if der, err = decryptPrivateKeyInfo(inner, pw); err != nil {
			return nil, err
		}
	case secretType.Equal(oidKeyBag):
		der = inner
	default:
		return nil, fmt.Errorf("%w: unsupported secret type %s", errMalformedPFX, secretType)
	}

	var (
		info, key cryptobyte.String
		version   int
	)
	in := cryptobyte.String(der)
	if !in.ReadASN1(&info, cbasn1.SEQUENCE) || !info.ReadASN1Integer(&version) {
		return nil, errMalformedPFX
	}
	alg, err := readAlgorithm(&info)
	if err != nil {
		return nil, err
	}
	if !info.ReadASN1(&key, cbasn1.OCTET_STRING) || len(key) == 0 {
		return nil, errMalformedPFX
	}
	return &secretEntry{algorithm: alg.oid, key: append([]byte(nil), key...)}, nil
}

func decryptPrivateKeyInfo(der cryptobyte.String, pw pfxPassword) ([]byte, error) {
	var (
		info       cryptobyte.String
		ciphertext []byte
	)
	if !der.ReadASN1(&info, cbasn1.SEQUENCE) {
		return nil, errMalformedPFX
	}
	alg, err := readAlgorithm(&info)
	if err != nil {
		return nil, err
	}
	if !info.ReadASN1Bytes(&ciphertext, cbasn1.OCTET_STRING) {
		return nil, errMalformedPFX
	}
	return decrypt(alg, ciphertext, pw)
}

func decrypt(alg algorithmIdentifier, ciphertext []byte, pw pfxPassword) ([]byte, error) {
	switch {
	case alg.oid.Equal(oidPBES2):
		return decryptPBES2(alg.params, ciphertext, pw.utf8)
	case alg.oid.Equal(oidPBEWith3DESCBC):
		return decrypt3DES(alg.params, ciphertext, pw.bmp)
	default:
		return nil, fmt.Errorf("%w: unsupported encryption %s", errMalformedPFX, alg.oid)
	}
}

func decryptPBES2(params cryptobyte.String, ciphertext, password []byte) ([]byte, error) {
	var seq, kdfParams cryptobyte.String
	if !params.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, errMalformedPFX
	}
	kdf, err := readAlgorithm(&seq)
	if err != nil {
		return nil, err
	}
	scheme, err := readAlgorithm(&seq)
	if err != nil {
		return nil, err
	}
	if !kdf.oid.Equal(oidPBKDF2) {
		return nil, fmt.Errorf("%w: unsupported KDF %s", errMalformedPFX, kdf.oid)
	}

	var (
		salt, iv   []byte
		iterations int
		keyLength  int
	)
	if !kdf.params.ReadASN1(&kdfParams, cbasn1.SEQUENCE) ||
		!kdfParams.ReadASN1Bytes(&salt, cbasn1.OCTET_STRING) ||
		!kdfParams.ReadASN1Integer(&iterations) ||
		!kdfParams.ReadOptionalASN1Integer(&keyLength, cbasn1.INTEGER, 0) {
		return nil, errMalformedPFX
	}
	prf := sha1.New
	if !kdfParams.Empty() {
		prfAlg, err := readAlgorithm(&kdfParams)
		if err != nil {
			return nil, err
		}
		var ok bool
		if prf, ok = hashForOID(prfAlg.oid); !ok {
			return nil, fmt.Errorf("%w: unsupported PRF %s", errMalformedPFX, prfAlg.oid)
		}
	}

	var size int
	switch {
	case scheme.oid.Equal(oidAES128CBC):
		size = 16
	case scheme.oid.Equal(oidAES192CBC):
		size = 24
	case scheme.oid.Equal(oidAES256CBC):
		size = 32
	default:
		return nil, fmt.Errorf("%w: unsupported cipher %s", errMalformedPFX, scheme.oid)
	}
	if keyLength != 0 && keyLength != size {
		return nil, errMalformedPFX
	}
	if !scheme.params.ReadASN1Bytes(&iv, cbasn1.OCTET_STRING) || len(iv) != aes.BlockSize {
		return nil, errMalformedPFX
	}

	block, err := aes.NewCipher(pbkdf2.Key(password, salt, iterations, size, prf))
	if err != nil {
		return nil, err
	}
	return cbcDecrypt(block, iv, ciphertext)
}

func decrypt3DES(params cryptobyte.String, ciphertext, password []byte) ([]byte, error) {
	var (
		seq        cryptobyte.String
		salt       []byte
		iterations int
	)
	if !params.ReadASN1(&seq, cbasn1.SEQUENCE) ||
		!seq.ReadASN1Bytes(&salt, cbasn1.OCTET_STRING) ||
		!seq.ReadASN1Integer(&iterations) {
		return nil, errMalformedPFX
	}
	key := pkcs12KDF(sha1.New, salt, password, iterations, pkcs12KeyID, 24)
	iv := pkcs12KDF(sha1.New, salt, password, iterations, pkcs12IVID, des.BlockSize)
	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, err
	}
	return cbcDecrypt(block, iv, ciphertext)
}

func cbcDecrypt(block cipher.Block, iv, ciphertext []byte) ([]byte, error) {
	size := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%size != 0 {
		return nil, errPFXDecryption
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	pad := int(out[len(out)-1])
	if pad == 0 || pad > size {
		return nil, errPFXDecryption
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, errPFXDecryption
		}
	}
	return out[:len(out)-pad], nil
}

// pkcs12KDF derives size bytes from password and salt (RFC 7292 appendix B).
// id selects key, IV or MAC material.
func pkcs12KDF(newHash func() hash.Hash, salt, password []byte, iterations, id, size int) []byte {
	h := newHash()
	v := h.BlockSize()
	d := make([]byte, v)
	for i := range d {
		d[i] = byte(id)
	}
	in := append(repeatTo(salt, v), repeatTo(password, v)...)

	out := make([]byte, 0, size)
	for {
		h.Reset()
		h.Write(d)
		h.Write(in)
		a := h.Sum(nil)
		for n := 1; n < iterations; n++ {
			h.Reset()
			h.Write(a)
			a = h.Sum(nil)
		}
		out = append(out, a...)
		if len(out) >= size {
			return out[:size]
		}
		b := repeatTo(a, v)
		for j := 0; j < len(in); j += v {
			addPlusOne(in[j:j+v], b)
		}
	}
}

// repeatTo concatenates copies of p up to the next multiple of v bytes.
func repeatTo(p []byte, v int) []byte {
	if len(p) == 0 {
		return nil
	}
	out := make([]byte, v*((len(p)+v-1)/v))
	for i := range out {
		out[i] = p[i%len(p)]
	}
	return out
}

// addPlusOne sets block to block + b + 1 modulo 2^(8*len(block)).
func addPlusOne(block, b []byte) {
	carry := 1
	for i := len(block) - 1; i >= 0; i-- {
		sum := int(block[i]) + int(b[i]) + carry
		block[i] = byte(sum)
		carry = sum >> 8
	}
}

// bmpString encodes s as big-endian UCS-2 with a two byte terminator.
func bmpString(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, 2*len(units)+2)
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return append(out, 0, 0)
}

func decodeBMPString(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	if n := len(units); n > 0 && units[n-1] == 0 {
		units = units[:n-1]
	}
	return string(utf16.Decode(units))
}
