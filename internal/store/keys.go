// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	keySchemaVersion  = "meta/schema_version"
	prefixCollection  = "meta/collection/"
	keyPendingSeq     = "meta/seq/pending"
	keyGenerationSeq  = "meta/seq/generation"
	prefixGeneration  = "mirrorgen/"
	prefixMirror      = "mirror/"
	prefixDetail      = "detail/"
	prefixSnapshot    = "snapshot/"
	prefixPending     = "pending/"
	keySeparator      = "/"
	generationIDWidth = 16
)

func checkSegment(kind, value string) error {
	if value == "" || strings.Contains(value, keySeparator) {
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, kind, value)
	}
	return nil
}

func generationKey(collection, outlet string) []byte {
	return []byte(prefixGeneration + collection + "/" + outlet)
}

func mirrorOutletPrefix(collection, outlet string) []byte {
	return []byte(prefixMirror + collection + "/" + outlet + "/")
}

func mirrorGenerationPrefix(collection, outlet string, gen uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%016x/", prefixMirror, collection, outlet, gen))
}

func mirrorKey(collection, outlet string, gen uint64, entityID string) []byte {
	return append(mirrorGenerationPrefix(collection, outlet, gen), entityID...)
}

// parseMirrorKey splits mirror/<collection>/<outlet>/<gen>/<id>.
func parseMirrorKey(key []byte) (collection, outlet string, gen uint64, ok bool) {
	parts := strings.SplitN(strings.TrimPrefix(string(key), prefixMirror), keySeparator, 4)
	if len(parts) != 4 || len(parts[2]) != generationIDWidth {
		return "", "", 0, false
	}
	gen, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil {
		return "", "", 0, false
	}
	return parts[0], parts[1], gen, true
}

func detailCollectionPrefix(collection string) []byte {
	return []byte(prefixDetail + collection + "/")
}

func detailGlobalKey(collection, entityID string) []byte {
	return []byte(prefixDetail + collection + "/" + entityID)
}

func detailOutletPrefix(collection, outlet string) []byte {
	return []byte(prefixDetail + collection + "/" + outlet + "/")
}

func detailOutletKey(collection, outlet, entityID string) []byte {
	return append(detailOutletPrefix(collection, outlet), entityID...)
}

func snapshotOutletPrefix(collection, outlet string) []byte {
	return []byte(prefixSnapshot + collection + "/" + outlet + "/")
}

func snapshotKey(collection, outlet, query string) []byte {
	return append(snapshotOutletPrefix(collection, outlet), query...)
}

func pendingTypePrefix(entityType string) []byte {
	return []byte(prefixPending + entityType + "/")
}

func pendingKey(entityType string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%016x", prefixPending, entityType, seq))
}

// pendingTypeFromKey extracts the entity type from pending/<type>/<seq>.
func pendingTypeFromKey(key []byte) string {
	rest := strings.TrimPrefix(string(key), prefixPending)
	if i := strings.Index(rest, keySeparator); i >= 0 {
		return rest[:i]
	}
	return rest
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("expected 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
