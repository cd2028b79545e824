// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// ShapeError reports model output that is not the JSON shape an operation
// expects. Field is a dotted path to the offending value, empty when the
// whole document is wrong.
type ShapeError struct {
	Field  string
	Reason string
	Raw    string
}

func (e *ShapeError) Error() string {
	if e.Field == "" {
		return "model output has unexpected shape: " + e.Reason
	}
	return fmt.Sprintf("model output has unexpected shape at %s: %s", e.Field, e.Reason)
}

// cleanJSON strips Markdown code fences and any prose around the outermost
// JSON object or array.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s
	}
	return s[start : end+1]
}

// object is a decoded JSON object whose values are checked one field at a
// time so that every consumed field is type-validated.
type object struct {
	path   string
	fields map[string]json.RawMessage
	raw    string
}

func decodeObject(data []byte, path, raw string) (object, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return object{}, &ShapeError{Field: path, Reason: "expected a JSON object", Raw: raw}
	}
	return object{path: path, fields: fields, raw: raw}, nil
}

func (o object) at(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// str returns the string at key. Absent and null yield "".
func (o object) str(key string) (string, error) {
	v, ok := o.fields[key]
	if !ok || isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", &ShapeError{Field: o.at(key), Reason: "expected a string", Raw: o.raw}
	}
	return strings.TrimSpace(s), nil
}

// num returns the number at key. Absent, null and empty strings yield nil.
// Numeric strings such as "12.5" are accepted.
func (o object) num(key string) (*float64, error) {
	v, ok := o.fields[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f, nil
		}
	}
	return nil, &ShapeError{Field: o.at(key), Reason: "expected a number", Raw: o.raw}
}

// decodeInfo validates every DinosaurInfo field of an object.
func decodeInfo(o object) (types.DinosaurInfo, error) {
	var info types.DinosaurInfo
	var err error

	strs := []struct {
		key string
		dst *string
	}{
		{"name", &info.Name},
		{"scientific_name", &info.ScientificName},
		{"period", &info.Period},
		{"diet", &info.Diet},
		{"habitat", &info.Habitat},
		{"region", &info.Region},
		{"description", &info.Description},
	}
	for _, f := range strs {
		if *f.dst, err = o.str(f.key); err != nil {
			return types.DinosaurInfo{}, err
		}
	}

	nums := []struct {
		key string
		dst **float64
	}{
		{"length_min_meters", &info.LengthMinMeters},
		{"length_max_meters", &info.LengthMaxMeters},
		{"weight_min_tons", &info.WeightMinTons},
		{"weight_max_tons", &info.WeightMaxTons},
	}
	for _, f := range nums {
		if *f.dst, err = o.num(f.key); err != nil {
			return types.DinosaurInfo{}, err
		}
	}

	return info, nil
}

// decodeBasicInfo parses the basic-info extraction output.
func decodeBasicInfo(raw string) (types.DinosaurInfo, error) {
	o, err := decodeObject([]byte(cleanJSON(raw)), "", raw)
	if err != nil {
		return types.DinosaurInfo{}, err
	}
	return decodeInfo(o)
}

// decodeFossils parses the fossil extraction output. Entries without a
// discovery location or fossil type are skipped.
func decodeFossils(raw string) ([]types.Fossil, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &items); err != nil {
		return nil, &ShapeError{Reason: "expected a JSON array", Raw: raw}
	}

	fossils := make([]types.Fossil, 0, len(items))
	for i, item := range items {
		o, err := decodeObject(item, fmt.Sprintf("[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		var f types.Fossil
		for _, field := range []struct {
			key string
			dst *string
		}{
			{"discovery_location", &f.DiscoveryLocation},
			{"discovery_date", &f.DiscoveryDate},
			{"fossil_type", &f.FossilType},
			{"description", &f.Description},
			{"image_url", &f.ImageURL},
		} {
			if *field.dst, err = o.str(field.key); err != nil {
				return nil, err
			}
		}
		if f.DiscoveryLocation == "" || f.FossilType == "" {
			continue
		}
		fossils = append(fossils, f)
	}
	return fossils, nil
}

// decodeURLs parses the image URL extraction output: an array of strings.
func decodeURLs(raw string) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &items); err != nil {
		return nil, &ShapeError{Reason: "expected a JSON array", Raw: raw}
	}
	urls := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, &ShapeError{Field: fmt.Sprintf("[%d]", i), Reason: "expected a string", Raw: raw}
		}
		if s = strings.TrimSpace(s); s != "" {
			urls = append(urls, s)
		}
	}
	return urls, nil
}

// decodeValidation parses the validation output. isValid must be a boolean,
// errors an array of strings, and cleanedInfo an object whose fields pass
// the same checks as basic-info extraction.
func decodeValidation(raw string) (types.ValidationResult, error) {
	o, err := decodeObject([]byte(cleanJSON(raw)), "", raw)
	if err != nil {
		return types.ValidationResult{}, err
	}

	var res types.ValidationResult

	v, ok := o.fields["isValid"]
	if !ok {
		return res, &ShapeError{Field: "isValid", Reason: "missing", Raw: raw}
	}
	if err := json.Unmarshal(v, &res.IsValid); err != nil || isNull(v) {
		return res, &ShapeError{Field: "isValid", Reason: "expected a boolean", Raw: raw}
	}

	v, ok = o.fields["errors"]
	if !ok {
		return res, &ShapeError{Field: "errors", Reason: "missing", Raw: raw}
	}
	if isNull(v) || json.Unmarshal(v, &res.Errors) != nil {
		return res, &ShapeError{Field: "errors", Reason: "expected an array of strings", Raw: raw}
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}

	v, ok = o.fields["cleanedInfo"]
	if !ok {
		return res, &ShapeError{Field: "cleanedInfo", Reason: "missing", Raw: raw}
	}
	info, err := decodeObject(v, "cleanedInfo", raw)
	if err != nil {
		return res, err
	}
	if res.CleanedInfo, err = decodeInfo(info); err != nil {
		return res, err
	}

	return res, nil
}
