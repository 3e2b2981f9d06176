package operation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives the cache key for an invocation of the named operation.
// Identity is name plus argument values: json.Marshal emits map keys in
// sorted order, so argument order never affects the key, and two calls with
// identical name and arguments always map to the same key.
func Key(name string, args map[string]any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		// Non-serializable argument values still need a stable identity;
		// fmt sorts map keys as well.
		payload = []byte(fmt.Sprintf("%v", args))
	}

	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte(":"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
