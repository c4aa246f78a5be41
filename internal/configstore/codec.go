// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import "encoding/json"

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(v)
}

func decodeJSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeJSONStringMap(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
