package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/statforge/statforge-go/internal/utils"
)

// BuildKey derives a content-addressable cache key from a category tag and a
// parameter set. Identical parameter sets always produce identical keys:
// encoding/json emits map keys in sorted order, so the serialized form is
// canonical regardless of how the map was populated.
func BuildKey(category string, params map[string]interface{}) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", utils.NewEncodingError(err)
	}
	return fmt.Sprintf("%s:%016x", category, xxhash.Sum64(payload)), nil
}
