package config

import (
	"github.com/exploopio/ropstat/pkg/errors"
)

// BinType names one of the two binary sets.
type BinType string

const (
	BinTypeObfuscated   BinType = "obfusc"
	BinTypeUnobfuscated BinType = "unobfusc"
)

// ParseBinType validates a --bin-type or --gadget-type value.
func ParseBinType(s string) (BinType, error) {
	switch t := BinType(s); t {
	case BinTypeObfuscated, BinTypeUnobfuscated:
		return t, nil
	default:
		return "", errors.E(errors.KindInvalidInput, "config.ParseBinType",
			"binary type must be obfusc or unobfusc, got "+quote(s))
	}
}

// ObfuscType names an obfuscation pass applied to the obfuscated set.
type ObfuscType string

const (
	ObfuscTypeBCF ObfuscType = "bcf" // bogus control flow
	ObfuscTypeFLA ObfuscType = "fla" // control flow flattening
	ObfuscTypeSUB ObfuscType = "sub" // instruction substitution
)

// ParseObfuscType validates an --obfusc-type value. Empty means all types.
func ParseObfuscType(s string) (ObfuscType, error) {
	switch t := ObfuscType(s); t {
	case "", ObfuscTypeBCF, ObfuscTypeFLA, ObfuscTypeSUB:
		return t, nil
	default:
		return "", errors.E(errors.KindInvalidInput, "config.ParseObfuscType",
			"obfuscation type must be bcf, fla or sub, got "+quote(s))
	}
}

func quote(s string) string {
	return `"` + s + `"`
}
