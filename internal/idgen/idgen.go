// Package idgen produces external identifiers for vault items and keys for
// stored blobs.
package idgen

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ItemIDLength is the length of public item identifiers. With the default
// 64-symbol nanoid alphabet this gives 60 bits of randomness.
const ItemIDLength = 10

const keyRandLength = 16

// ItemID returns a new random item identifier.
func ItemID() (string, error) {
	return gonanoid.New(ItemIDLength)
}

// StorageKey returns a blob key for an upload received at now. Only the
// extension of the original name is kept so that user input never becomes
// part of a path.
func StorageKey(now time.Time, originalName string) (string, error) {
	r, err := gonanoid.New(keyRandLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), r, safeExt(originalName)), nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
