package util

import (
	"github.com/filecoin-project/go-bitfield"
)

// Checks whether bitfield `a` contains all bits set in bitfield `b`.
func BitFieldContainsAll(a, b bitfield.BitField) (bool, error) {
	diff, err := bitfield.SubtractBitField(b, a)
	if err != nil {
		return false, err
	}

	return diff.IsEmpty()
}

// Checks whether bitfield `a` contains any bit set in bitfield `b`.
func BitFieldContainsAny(a, b bitfield.BitField) (bool, error) {
	combined, err := bitfield.IntersectBitField(a, b)
	if err != nil {
		return false, err
	}

	empty, err := combined.IsEmpty()
	if err != nil {
		return false, err
	}

	return !empty, nil
}
