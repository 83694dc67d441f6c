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
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"strings"

	"github.com/jeremyhahn/go-turbocharger/pkg/encoding"
	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

type jksProvider struct {
	ks         keystore.KeyStore
	passphrase string
	order      []string
	chains     map[string][]*x509.Certificate
}

// decodeJKS loads the container and parses every certificate up front.
// Private keys stay encrypted until Key is called with their passphrase.
func decodeJKS(r io.Reader, passphrase string) (provider, error) {
	ks := keystore.New(keystore.WithOrderedAliases())
	if err := ks.Load(r, []byte(passphrase)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyMaterial, err)
	}

	p := &jksProvider{
		ks:         ks,
		passphrase: passphrase,
		chains:     make(map[string][]*x509.Certificate),
	}

	for _, alias := range ks.Aliases() {
		var raw []keystore.Certificate
		switch {
		case ks.IsPrivateKeyEntry(alias):
			chain, err := ks.GetPrivateKeyEntryCertificateChain(alias)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrKeyMaterial, alias, err)
			}
			raw = chain
		case ks.IsTrustedCertificateEntry(alias):
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrKeyMaterial, alias, err)
			}
			raw = []keystore.Certificate{entry.Certificate}
		default:
			// Secret-key entries carry no certificate.
			continue
		}

		chain, err := parseJKSChain(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrKeyMaterial, alias, err)
		}
		p.chains[alias] = chain
		p.order = append(p.order, alias)
	}

	return p, nil
}

func parseJKSChain(raw []keystore.Certificate) ([]*x509.Certificate, error) {
	chain := make([]*x509.Certificate, 0, len(raw))
	for _, c := range raw {
		if c.Type != "" && c.Type != "X.509" {
			return nil, fmt.Errorf("unsupported certificate type %q", c.Type)
		}
		cert, err := x509.ParseCertificate(c.Content)
		if err != nil {
			return nil, err
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

func (p *jksProvider) aliases() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *jksProvider) contains(alias string) bool {
	_, ok := p.chains[strings.ToLower(alias)]
	return ok
}

func (p *jksProvider) isKeyEntry(alias string) bool {
	return p.ks.IsPrivateKeyEntry(alias)
}

// key decrypts the entry with passphrase, or with the store passphrase when
// passphrase is empty.
func (p *jksProvider) key(alias, passphrase string) (crypto.PrivateKey, bool) {
	if !p.ks.IsPrivateKeyEntry(alias) {
		return nil, false
	}
	if passphrase == "" {
		passphrase = p.passphrase
	}
	entry, err := p.ks.GetPrivateKeyEntry(alias, []byte(passphrase))
	if err != nil {
		return nil, false
	}
	key, err := encoding.ParsePrivateKeyDER(entry.PrivateKey)
	if err != nil {
		return nil, false
	}
	return key, true
}

// secret always fails: keystore-go decodes private key and trusted
// certificate entries only.
func (p *jksProvider) secret(string, string) ([]byte, bool) {
	return nil, false
}

func (p *jksProvider) chain(alias string) ([]*x509.Certificate, bool) {
	// keystore-go folds aliases to lowercase.
	chain, ok := p.chains[strings.ToLower(alias)]
	return chain, ok
}
