// Copyright (C) 2019  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package mails provides address parsing and case-insensitive comparison for
// the envelope and recipient addresses carried on MTA hook requests.
package mails

import (
	"errors"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidAddressFormat is used for addresses of zero length or without
	// an "@" sign.
	ErrInvalidAddressFormat = errors.New("address: invalid format")

	// ErrPathTooLong is used for addresses, that are too long or contain a path
	// that is too long according to RFC#5321.
	ErrPathTooLong = errors.New("address: path too long")

	// ZeroAddress is an invalid, zero value Address.
	ZeroAddress Address
)

// fold is a cases.Caser used to compare local-parts in a case-insensitive way.
var fold = cases.Fold()

// Address is a string of the form "local-part@domain".
type Address struct {
	raw string
	at  int
}

// ParseAddress splits an address at the "@" sign and checks for size limits.
// Exactly one "@" must be present, matching the `mail` stage rule in
// the rcpt/mail hook validations.
func ParseAddress(raw string) (Address, error) {
	if len(raw) == 0 {
		return ZeroAddress, ErrInvalidAddressFormat
	}

	at := strings.IndexByte(raw, '@')
	if at < 0 || strings.IndexByte(raw[at+1:], '@') >= 0 {
		return ZeroAddress, ErrInvalidAddressFormat
	}

	// see RFC#5321 4.5.3.1
	if at > 64 || len(raw)-at > 256 || len(raw) > 256 {
		return ZeroAddress, ErrPathTooLong
	}

	return Address{raw, at}, nil
}

// String returns the raw address provided to ParseAddress.
func (a Address) String() string {
	return a.raw
}

// LocalPart returns the part left of the "@" sign (exclusive).
func (a Address) LocalPart() string {
	return a.raw[:a.at]
}

// Domain return the part right of the "@" sign (exclusive).
func (a Address) Domain() string {
	return a.raw[a.at+1:]
}

// DomainToUnicode normalizes a punycode domain to unicode and applies the
// NFC normal form.
func DomainToUnicode(domain string) (string, error) {
	mapped, err := idna.Lookup.ToUnicode(domain)
	if err != nil {
		return domain, nil //nolint:nilerr // best-effort normalization, comparisons fall back to raw case-folding
	}

	return norm.NFC.String(mapped), nil
}

// NormalizeForMatching folds an address (local-part and domain alike) into a
// form suitable for case-insensitive comparison, per the policy engine's
// contract that local-part and domain are matched case-insensitively while
// storage preserves the original case.
func NormalizeForMatching(raw string) string {
	addr, err := ParseAddress(raw)
	if err != nil {
		return fold.String(strings.TrimSpace(raw))
	}

	domain, err := DomainToUnicode(addr.Domain())
	if err != nil {
		domain = addr.Domain()
	}

	return fold.String(addr.LocalPart()) + "@" + fold.String(domain)
}

// EqualFold reports whether two raw address strings are equal under
// NormalizeForMatching.
func EqualFold(a, b string) bool {
	return NormalizeForMatching(a) == NormalizeForMatching(b)
}
