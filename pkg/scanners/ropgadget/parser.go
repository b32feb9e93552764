package ropgadget

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// uniquePrefix starts the trailer line ROPgadget prints after the listing.
const uniquePrefix = "Unique gadgets found:"

// Gadget is one entry of a ROPgadget listing.
type Gadget struct {
	Address      uint64 `json:"address"`
	Instructions string `json:"instructions"`
	Line         string `json:"line"`
}

// Listing is a parsed ROPgadget output.
type Listing struct {
	Gadgets []Gadget `json:"gadgets"`

	// Unique is the count from the trailer line, or -1 when it is absent.
	Unique int `json:"unique"`
}

// ParseListing extracts gadget lines from ROPgadget output. Banner, separator
// and trailer lines are skipped.
//
//	Gadgets information
//	============================================================
//	0x0000000000401234 : pop rdi ; ret
//
//	Unique gadgets found: 1
func ParseListing(r io.Reader) (*Listing, error) {
	listing := &Listing{Unique: -1}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, uniquePrefix); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return nil, fmt.Errorf("parse unique gadget count %q: %w", line, err)
			}
			listing.Unique = n
			continue
		}

		g, ok := parseGadget(line)
		if ok {
			listing.Gadgets = append(listing.Gadgets, g)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ropgadget output: %w", err)
	}

	return listing, nil
}

// ParseListingBytes parses raw ROPgadget output.
func ParseListingBytes(data []byte) (*Listing, error) {
	return ParseListing(bytes.NewReader(data))
}

// WriteGadgets writes one gadget line per entry, dropping everything else
// ROPgadget prints.
func (l *Listing) WriteGadgets(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, g := range l.Gadgets {
		if _, err := bw.WriteString(g.Line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func parseGadget(line string) (Gadget, bool) {
	addr, insns, ok := strings.Cut(line, " : ")
	if !ok {
		return Gadget{}, false
	}
	hex, ok := strings.CutPrefix(strings.TrimSpace(addr), "0x")
	if !ok {
		return Gadget{}, false
	}
	n, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return Gadget{}, false
	}
	return Gadget{Address: n, Instructions: strings.TrimSpace(insns), Line: line}, true
}
