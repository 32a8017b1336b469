// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ComputeRequest is a validated compute payload. Overrides maps activity ids
// to weekly quantity overrides; unknown ids are kept (they are part of the
// request's cache identity) and ignored by the engine. Field tags mirror the
// wire schema for /api/compute.
type ComputeRequest struct {
	ProfileID string             `json:"profile_id"`
	Overrides map[string]float64 `json:"overrides"`
}

// ParseComputeRequest validates an arbitrary decoded JSON value into a
// ComputeRequest. Deterministic: the same input always yields the same
// request or the same error. All rejections wrap ErrInvalidPayload.
//
// Rules, in order: the value must be a JSON object; profile_id must be a
// string with non-whitespace content; overrides, when present, must be an
// object whose entries have non-empty keys and values that are null (dropped),
// or coerce to a finite number. Booleans are rejected outright.
func ParseComputeRequest(raw any) (ComputeRequest, error) {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return ComputeRequest{}, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidPayload)
	}

	profileID, ok := obj["profile_id"].(string)
	if !ok {
		return ComputeRequest{}, fmt.Errorf("%w: profile_id must be a string", ErrInvalidPayload)
	}
	if strings.TrimSpace(profileID) == "" {
		return ComputeRequest{}, fmt.Errorf("%w: profile_id must not be blank", ErrInvalidPayload)
	}

	overrides := make(map[string]float64)
	if rawOverrides, present := obj["overrides"]; present && rawOverrides != nil {
		ovObj, ok := rawOverrides.(map[string]any)
		if !ok {
			return ComputeRequest{}, fmt.Errorf("%w: overrides must be an object", ErrInvalidPayload)
		}
		for key, value := range ovObj {
			if key == "" {
				return ComputeRequest{}, fmt.Errorf("%w: override keys must not be empty", ErrInvalidPayload)
			}
			if value == nil {
				// Null means "no override", same as an absent key.
				continue
			}
			quantity, err := coerceQuantity(value)
			if err != nil {
				return ComputeRequest{}, fmt.Errorf("%w: override %q %s", ErrInvalidPayload, key, err)
			}
			overrides[key] = quantity
		}
	}

	return ComputeRequest{ProfileID: profileID, Overrides: overrides}, nil
}

// coerceQuantity converts an override value to a finite float64. Booleans are
// rejected explicitly rather than coerced; numeric strings are accepted.
func coerceQuantity(value any) (float64, error) {
	switch v := value.(type) {
	case bool:
		return 0, fmt.Errorf("must be numeric, got a boolean")
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("is not a finite number")
		}
		return checkFinite(f)
	case float64:
		return checkFinite(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("is not a finite number")
		}
		return checkFinite(f)
	default:
		return 0, fmt.Errorf("is not a finite number")
	}
}

func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("is not a finite number")
	}
	return f, nil
}
