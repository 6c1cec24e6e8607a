// Package rawupdate loads pre-encoded wire-message files used to inject
// route/label advertisements onto an established BGP or LDP session.
//
// Grounded on spec §3 "Raw-update descriptor" and §6 "Raw-update file
// format"; the loader itself is referenced but not defined in the
// original source (see bgp_ctrl.h's bgp_ctrl_raw_update and
// ldp_session.c's session->raw_update_start chain) — this package gives
// it a concrete, trusting-the-file-author implementation.
package rawupdate

import (
	"errors"
	"fmt"
	"os"
)

// ErrEmptyFile indicates a raw-update file contained zero bytes.
var ErrEmptyFile = errors.New("rawupdate: file is empty")

// Descriptor is an immutable, memory-resident blob of pre-encoded wire
// messages plus the message count the caller supplies out of band (the
// loader does not parse frames; it trusts the file author per spec §6).
type Descriptor struct {
	File     string
	Buf      []byte
	Messages uint32
	PDUs     uint32
}

// Chain is a singly linked, owned sequence of descriptors so a pump can
// advance to the next file after the current one drains (spec §3). It
// replaces the source's `next`-pointer chain with an owning slice plus a
// cursor, per DESIGN NOTES "Intrusive linked lists -> owned collections".
type Chain struct {
	descriptors []*Descriptor
	cursor      int
}

// NewChain builds a Chain from pre-loaded descriptors.
func NewChain(descriptors ...*Descriptor) *Chain {
	return &Chain{descriptors: descriptors}
}

// Current returns the descriptor the pump should currently be sending, or
// nil if the chain is exhausted.
func (c *Chain) Current() *Descriptor {
	if c == nil || c.cursor >= len(c.descriptors) {
		return nil
	}
	return c.descriptors[c.cursor]
}

// Advance moves to the next descriptor in the chain.
func (c *Chain) Advance() {
	if c == nil {
		return
	}
	c.cursor++
}

// Reset rewinds the chain to its first descriptor, used on session
// reconnect (mirrors ldp_session_connect's `session->raw_update =
// session->raw_update_start`).
func (c *Chain) Reset() {
	if c == nil {
		return
	}
	c.cursor = 0
}

// Len returns the total number of descriptors in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.descriptors)
}

// LoadFile reads path as a single contiguous blob and wraps it in a
// Descriptor with the given precomputed message/PDU counts. The loader
// does not re-parse the contents — the caller is responsible for knowing
// how many messages/PDUs the file encodes, matching the "trusts the file
// author" contract of spec §6.
func LoadFile(path string, messages, pdus uint32) (*Descriptor, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load raw update %s: %w", path, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("load raw update %s: %w", path, ErrEmptyFile)
	}
	return &Descriptor{
		File:     path,
		Buf:      buf,
		Messages: messages,
		PDUs:     pdus,
	}, nil
}

// LoadChain loads a sequence of raw-update files into an owned Chain, in
// order. Each session performs its own load — descriptors are never
// shared between sessions (spec §5 "Resource ownership").
func LoadChain(files []string, messagesPerFile, pdusPerFile []uint32) (*Chain, error) {
	descriptors := make([]*Descriptor, 0, len(files))
	for i, f := range files {
		var messages, pdus uint32
		if i < len(messagesPerFile) {
			messages = messagesPerFile[i]
		}
		if i < len(pdusPerFile) {
			pdus = pdusPerFile[i]
		}
		d, err := LoadFile(f, messages, pdus)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return NewChain(descriptors...), nil
}
