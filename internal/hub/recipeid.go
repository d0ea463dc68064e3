package hub

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

var ErrInvalidRecipeID = errors.New("invalid recipe id")

// RecipeID is the canonical topic key of a recipe. Clients may send 12 or "12"; both
// canonicalize to "12".
type RecipeID string

// ParseRecipeID canonicalizes a raw JSON value. Only strings and numbers are accepted.
func ParseRecipeID(raw []byte) (RecipeID, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrInvalidRecipeID
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRecipeID, err)
		}
		return recipeIDFromString(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return recipeIDFromNumber(string(raw))
	default:
		return "", ErrInvalidRecipeID
	}
}

// RecipeIDOf canonicalizes an id handed over by Go callers.
func RecipeIDOf(v any) (RecipeID, error) {
	switch id := v.(type) {
	case RecipeID:
		return recipeIDFromString(string(id))
	case string:
		return recipeIDFromString(id)
	case int:
		return RecipeID(strconv.Itoa(id)), nil
	case int32:
		return RecipeID(strconv.FormatInt(int64(id), 10)), nil
	case int64:
		return RecipeID(strconv.FormatInt(id, 10)), nil
	case uint:
		return RecipeID(strconv.FormatUint(uint64(id), 10)), nil
	case uint32:
		return RecipeID(strconv.FormatUint(uint64(id), 10)), nil
	case uint64:
		return RecipeID(strconv.FormatUint(id, 10)), nil
	case float64:
		return recipeIDFromFloat(id)
	case json.Number:
		return recipeIDFromNumber(id.String())
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidRecipeID, v)
	}
}

func recipeIDFromString(s string) (RecipeID, error) {
	if s == "" {
		return "", ErrInvalidRecipeID
	}
	return RecipeID(s), nil
}

func recipeIDFromNumber(lit string) (RecipeID, error) {
	if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return RecipeID(strconv.FormatInt(n, 10)), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecipeID, err)
	}
	return recipeIDFromFloat(f)
}

// recipeIDFromFloat renders integral values without a fraction so 12.0 and 1.2e1 both map to "12".
func recipeIDFromFloat(f float64) (RecipeID, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", ErrInvalidRecipeID
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return RecipeID(strconv.FormatInt(int64(f), 10)), nil
	}
	return RecipeID(strconv.FormatFloat(f, 'f', -1, 64)), nil
}
