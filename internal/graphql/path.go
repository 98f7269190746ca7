package graphql

import (
	"fmt"
	"strings"
)

// Lookup follows a dotted field path such as "_service.sdl" through data.
func Lookup(data map[string]any, path string) (any, error) {
	if data == nil {
		return nil, fmt.Errorf("no data")
	}
	var current any = data
	for _, field := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: parent is not an object", field)
		}
		val, exists := obj[field]
		if !exists {
			return nil, fmt.Errorf("%s: not found", field)
		}
		current = val
	}
	return current, nil
}
