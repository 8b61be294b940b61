package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// fileChecksum digests catalog content with CRLF folded to LF, so a file
// that only changed line endings is not imported again.
func fileChecksum(data []byte) string {
	h := sha256.Sum256(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n")))
	return hex.EncodeToString(h[:])
}
