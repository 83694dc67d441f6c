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
	"bytes"
	"crypto"
	"crypto/subtle"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"

	"github.com/jeremyhahn/go-turbocharger/pkg/encoding"
	"software.sslmate.com/src/go-pkcs12"
)

// PEM header names emitted by pkcs12.ToPEM.
const (
	headerFriendlyName = "friendlyName"
	headerLocalKeyID   = "localKeyId"
)

type pkcs12Entry struct {
	key    crypto.PrivateKey
	chain  []*x509.Certificate
	secret []byte
}

type pkcs12Provider struct {
	passphrase string
	order      []string
	entries    map[string]*pkcs12Entry
	next       int
}

func newPKCS12Provider(passphrase string) *pkcs12Provider {
	return &pkcs12Provider{
		passphrase: passphrase,
		entries:    make(map[string]*pkcs12Entry),
	}
}

// add stores an entry. An empty alias takes the next numeric alias.
func (p *pkcs12Provider) add(alias string, entry *pkcs12Entry) error {
	if alias == "" {
		for {
			p.next++
			alias = strconv.Itoa(p.next)
			if _, taken := p.entries[alias]; !taken {
				break
			}
		}
	}
	if _, dup := p.entries[alias]; dup {
		return fmt.Errorf("%w: duplicate alias: %s", ErrKeyMaterial, alias)
	}
	p.entries[alias] = entry
	p.order = append(p.order, alias)
	return nil
}

func (p *pkcs12Provider) aliases() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *pkcs12Provider) contains(alias string) bool {
	_, ok := p.entries[alias]
	return ok
}

func (p *pkcs12Provider) isKeyEntry(alias string) bool {
	e, ok := p.entries[alias]
	return ok && (e.key != nil || e.secret != nil)
}

// opens accepts an empty passphrase or the store passphrase, since PKCS#12
// entries share the store's integrity password.
func (p *pkcs12Provider) opens(passphrase string) bool {
	return passphrase == "" || subtle.ConstantTimeCompare([]byte(passphrase), []byte(p.passphrase)) == 1
}

func (p *pkcs12Provider) key(alias, passphrase string) (crypto.PrivateKey, bool) {
	e, ok := p.entries[alias]
	if !ok || e.key == nil || !p.opens(passphrase) {
		return nil, false
	}
	return e.key, true
}

func (p *pkcs12Provider) secret(alias, passphrase string) ([]byte, bool) {
	e, ok := p.entries[alias]
	if !ok || e.secret == nil || !p.opens(passphrase) {
		return nil, false
	}
	return append([]byte(nil), e.secret...), true
}

func (p *pkcs12Provider) chain(alias string) ([]*x509.Certificate, bool) {
	e, ok := p.entries[alias]
	if !ok {
		return nil, false
	}
	return e.chain, true
}

// decodePKCS12 reads every bag through ToPEM. Containers ToPEM rejects
// (secret keys, Java trust stores) go through readSafeBags, and what that
// cannot decrypt falls back to the single-entry decoders.
func decodePKCS12(data []byte, passphrase string) (provider, error) {
	blocks, err := pkcs12.ToPEM(data, passphrase)
	if err == nil {
		return fromPEMBlocks(blocks, nil, passphrase)
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, fmt.Errorf("%w: %w", ErrKeyMaterial, err)
	}

	blocks, secrets, bagErr := readSafeBags(data, passphrase)
	if bagErr == nil {
		return fromPEMBlocks(blocks, secrets, passphrase)
	}
	if errors.Is(bagErr, errIncorrectPFXPass) {
		return nil, fmt.Errorf("%w: %w", ErrKeyMaterial, bagErr)
	}

	p := newPKCS12Provider(passphrase)

	key, cert, caCerts, chainErr := pkcs12.DecodeChain(data, passphrase)
	if chainErr == nil {
		chain := append([]*x509.Certificate{cert}, caCerts...)
		if err := p.add("", &pkcs12Entry{key: key, chain: chain}); err != nil {
			return nil, err
		}
		return p, nil
	}

	certs, trustErr := pkcs12.DecodeTrustStore(data, passphrase)
	if trustErr == nil {
		for _, c := range certs {
			if err := p.add("", &pkcs12Entry{chain: []*x509.Certificate{c}}); err != nil {
				return nil, err
			}
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrKeyMaterial, chainErr)
}

type certBag struct {
	cert       *x509.Certificate
	name       string
	localKeyID string
	// used marks a certificate claimed by a chain; leaf marks the
	// certificate of a key entry.
	used bool
	leaf bool
}

type keyBag struct {
	key        crypto.PrivateKey
	name       string
	localKeyID string
}

func fromPEMBlocks(blocks []*pem.Block, secrets []*secretEntry, passphrase string) (provider, error) {
	var (
		certs []*certBag
		keys  []*keyBag
	)
	for _, block := range blocks {
		switch block.Type {
		case encoding.PEMTypeCertificate:
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrKeyMaterial, err)
			}
			certs = append(certs, &certBag{
				cert:       cert,
				name:       block.Headers[headerFriendlyName],
				localKeyID: block.Headers[headerLocalKeyID],
			})
		case encoding.PEMTypePrivateKey:
			// ToPEM labels PKCS#1 and SEC 1 bytes as PRIVATE KEY.
			key, err := encoding.ParsePrivateKeyDER(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrKeyMaterial, err)
			}
			keys = append(keys, &keyBag{
				key:        key,
				name:       block.Headers[headerFriendlyName],
				localKeyID: block.Headers[headerLocalKeyID],
			})
		}
	}

	p := newPKCS12Provider(passphrase)

	for _, kb := range keys {
		leaf := findLeaf(certs, kb)
		if leaf == nil {
			return nil, fmt.Errorf("%w: private key without certificate", ErrKeyMaterial)
		}
		leaf.used = true
		leaf.leaf = true

		alias := kb.name
		if alias == "" {
			alias = leaf.name
		}
		if err := p.add(alias, &pkcs12Entry{key: kb.key, chain: buildChain(leaf.cert, certs)}); err != nil {
			return nil, err
		}
	}

	for _, s := range secrets {
		if err := p.add(s.name, &pkcs12Entry{secret: s.key}); err != nil {
			return nil, err
		}
	}

	// Named certificates and issuers no chain claimed become trusted entries.
	for _, cb := range certs {
		if cb.leaf || (cb.used && cb.name == "") {
			continue
		}
		if err := p.add(cb.name, &pkcs12Entry{chain: []*x509.Certificate{cb.cert}}); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func findLeaf(certs []*certBag, kb *keyBag) *certBag {
	if kb.localKeyID != "" {
		for _, cb := range certs {
			if cb.localKeyID == kb.localKeyID {
				return cb
			}
		}
	}
	signer, ok := kb.key.(crypto.Signer)
	if !ok {
		return nil
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return nil
	}
	for _, cb := range certs {
		if !cb.used && pub.Equal(cb.cert.PublicKey) {
			return cb
		}
	}
	return nil
}

// buildChain follows issuer links from leaf through the certificates that
// carry no localKeyId.
func buildChain(leaf *x509.Certificate, certs []*certBag) []*x509.Certificate {
	chain := []*x509.Certificate{leaf}
	current := leaf
	for !bytes.Equal(current.RawIssuer, current.RawSubject) {
		var issuer *certBag
		for _, cb := range certs {
			if cb.localKeyID == "" && !inChain(chain, cb.cert) &&
				bytes.Equal(cb.cert.RawSubject, current.RawIssuer) {
				issuer = cb
				break
			}
		}
		if issuer == nil {
			break
		}
		issuer.used = true
		chain = append(chain, issuer.cert)
		current = issuer.cert
	}
	return chain
}

func inChain(chain []*x509.Certificate, cert *x509.Certificate) bool {
	for _, c := range chain {
		if c.Equal(cert) {
			return true
		}
	}
	return false
}
