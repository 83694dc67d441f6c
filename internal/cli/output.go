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

package cli

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// ParseOutputFormat validates an --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputFormatText, OutputFormatJSON, OutputFormatTable:
		return f, nil
	case "":
		return OutputFormatText, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format OutputFormat, writer io.Writer) *Printer {
	return &Printer{format: format, writer: writer}
}

// EntryInfo describes one keystore entry.
type EntryInfo struct {
	Alias    string    `json:"alias"`
	KeyEntry bool      `json:"key_entry"`
	Subject  string    `json:"subject,omitempty"`
	NotAfter time.Time `json:"not_after,omitempty"`
}

// PrintEntries prints the entries of a key container.
func (p *Printer) PrintEntries(format string, entries []EntryInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"format":  format,
			"entries": entries,
		})
	case OutputFormatTable:
		if len(entries) == 0 {
			fmt.Fprintln(p.writer, "No entries found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-20s %-8s %-40s %-20s\n", "ALIAS", "TYPE", "SUBJECT", "NOT AFTER")
		fmt.Fprintln(p.writer, strings.Repeat("-", 90))
		for _, e := range entries {
			fmt.Fprintf(p.writer, "%-20s %-8s %-40s %-20s\n",
				e.Alias, entryType(e), e.Subject, e.NotAfter.Format(time.DateOnly))
		}
		return nil
	case OutputFormatText:
		if len(entries) == 0 {
			fmt.Fprintln(p.writer, "No entries found")
			return nil
		}
		fmt.Fprintf(p.writer, "Entries (%s):\n", format)
		for _, e := range entries {
			fmt.Fprintf(p.writer, "  - %s (%s) %s\n", e.Alias, entryType(e), e.Subject)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func entryType(e EntryInfo) string {
	if e.KeyEntry {
		return "key"
	}
	return "trusted"
}

// BundleInfo describes a loaded key bundle.
type BundleInfo struct {
	Source        string   `json:"source"`
	Alias         string   `json:"alias,omitempty"`
	KeyType       string   `json:"key_type,omitempty"`
	HasPrivateKey bool     `json:"has_private_key"`
	Thumbprint    string   `json:"thumbprint,omitempty"`
	Chain         []string `json:"chain"`
}

// PrintBundle prints a key bundle and its certificate chain.
func (p *Printer) PrintBundle(info BundleInfo, chain []*x509.Certificate) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"bundle":       info,
			"certificates": certificateInfo(chain),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Source:      %s\n", info.Source)
		if info.Alias != "" {
			fmt.Fprintf(p.writer, "Alias:       %s\n", info.Alias)
		}
		fmt.Fprintf(p.writer, "Key Type:    %s\n", info.KeyType)
		fmt.Fprintf(p.writer, "Private Key: %t\n", info.HasPrivateKey)
		if info.Thumbprint != "" {
			fmt.Fprintf(p.writer, "Thumbprint:  %s\n", info.Thumbprint)
		}
		fmt.Fprintln(p.writer, "Chain:")
		for i, c := range chain {
			fmt.Fprintf(p.writer, "  [%d] %s (expires %s)\n", i, c.Subject, c.NotAfter.Format(time.DateOnly))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func certificateInfo(chain []*x509.Certificate) []map[string]any {
	out := make([]map[string]any, len(chain))
	for i, cert := range chain {
		out[i] = map[string]any{
			"subject":             cert.Subject.String(),
			"issuer":              cert.Issuer.String(),
			"serial_number":       cert.SerialNumber.String(),
			"signature_algorithm": cert.SignatureAlgorithm.String(),
			"not_before":          cert.NotBefore,
			"not_after":           cert.NotAfter,
		}
	}
	return out
}

// AlgorithmRow is one configured algorithm for listing.
type AlgorithmRow struct {
	Name      string `json:"name"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	CanSign   bool   `json:"can_sign"`
}

// PrintAlgorithms prints the configured algorithms.
func (p *Printer) PrintAlgorithms(rows []AlgorithmRow) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{"algorithms": rows})
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-16s %-8s %-46s %-8s\n", "NAME", "ALG", "KID", "SIGN")
		fmt.Fprintln(p.writer, strings.Repeat("-", 80))
		for _, r := range rows {
			fmt.Fprintf(p.writer, "%-16s %-8s %-46s %-8t\n", r.Name, r.Algorithm, r.KeyID, r.CanSign)
		}
		return nil
	case OutputFormatText:
		fmt.Fprintln(p.writer, "Algorithms:")
		for _, r := range rows {
			fmt.Fprintf(p.writer, "  - %s (%s, kid=%s)\n", r.Name, r.Algorithm, r.KeyID)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSignature prints a base64url signature.
func (p *Printer) PrintSignature(alg, signature string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"alg":       alg,
			"signature": signature,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, signature)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVerification prints a verification outcome.
func (p *Printer) PrintVerification(valid bool, reason error) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]any{"valid": valid}
		if reason != nil {
			out["message"] = reason.Error()
		}
		return p.printJSON(out)
	case OutputFormatTable, OutputFormatText:
		if valid {
			fmt.Fprintln(p.writer, "Signature valid")
		} else {
			fmt.Fprintf(p.writer, "Signature invalid: %v\n", reason)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintToken prints a compact JWT.
func (p *Printer) PrintToken(token string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{"token": token})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, token)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintClaims prints verified token claims, sorted by name.
func (p *Printer) PrintClaims(claims map[string]any) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{"valid": true, "claims": claims})
	case OutputFormatTable, OutputFormatText:
		keys := make([]string, 0, len(claims))
		for k := range claims {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(p.writer, "Token valid")
		for _, k := range keys {
			fmt.Fprintf(p.writer, "  %-8s %v\n", k+":", claims[k])
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintJWKS prints a JWK set. It is always JSON.
func (p *Printer) PrintJWKS(set jose.JSONWebKeySet) error {
	return p.printJSON(set)
}

// PrintIDs prints Snowflake IDs one per line.
func (p *Printer) PrintIDs(ids []int64) error {
	switch p.format {
	case OutputFormatJSON:
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = fmt.Sprint(id)
		}
		return p.printJSON(map[string]any{"ids": strs})
	case OutputFormatTable, OutputFormatText:
		for _, id := range ids {
			fmt.Fprintln(p.writer, id)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data any) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
