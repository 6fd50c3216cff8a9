// SPDX-FileCopyrightText: 2026 The amqpstack Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import "fmt"

// Provider describes one upgrade step of the negotiation: its protocol, the supported versions and how to wrap a
// Transport into this protocol's layer. Providers are read-only after construction.
type Provider interface {
	fmt.Stringer

	// ProtocolID announced by this Provider's headers.
	ProtocolID() ProtocolID

	// Versions in priority order; the first one is the default.
	Versions() []Version

	// DefaultHeader is sent by an initiator and used as a listener's counter-proposal.
	DefaultHeader() ProtocolHeader

	// Matches reports if both the protocol and the version of a header are supported.
	Matches(header ProtocolHeader) bool

	// CreateTransport wraps inner into this protocol's layer. Returning inner itself signals that no further
	// upgrade takes place, which is the case for the terminal application protocol.
	CreateTransport(inner Transport, isInitiator bool) (Transport, error)
}

// ProviderBase implements the version bookkeeping of a Provider. It is meant to be embedded.
type ProviderBase struct {
	ID                ProtocolID
	SupportedVersions []Version
}

// ProtocolID of this Provider.
func (pb ProviderBase) ProtocolID() ProtocolID {
	return pb.ID
}

// Versions of this Provider; DefaultVersion if none were configured.
func (pb ProviderBase) Versions() []Version {
	if len(pb.SupportedVersions) == 0 {
		return []Version{DefaultVersion}
	}
	return pb.SupportedVersions
}

// DefaultVersion is the first supported Version.
func (pb ProviderBase) DefaultVersion() Version {
	return pb.Versions()[0]
}

// DefaultHeader as described by the Provider interface.
func (pb ProviderBase) DefaultHeader() ProtocolHeader {
	return NewProtocolHeader(pb.ID, pb.DefaultVersion())
}

// SupportsVersion checks the Version against the list of supported Versions.
func (pb ProviderBase) SupportsVersion(v Version) bool {
	for _, supported := range pb.Versions() {
		if supported == v {
			return true
		}
	}
	return false
}

// Matches as described by the Provider interface.
func (pb ProviderBase) Matches(header ProtocolHeader) bool {
	return header.ID == pb.ID && pb.SupportsVersion(header.Version)
}

func (pb ProviderBase) String() string {
	return fmt.Sprintf("%v provider", pb.ID)
}
