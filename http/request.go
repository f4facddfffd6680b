package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"carprice/models"
)

var errMalformedJSON = errors.New("malformed JSON body")

var queryFields = []string{
	models.FieldBrand,
	models.FieldModel,
	models.FieldYear,
	models.FieldMileage,
	models.FieldFuelType,
	models.FieldTransmission,
}

// fields 解码后的JSON请求体，值保持原始格式
type fields map[string]json.RawMessage

func decodeFields(r *http.Request) (fields, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedJSON, err)
	}
	var f fields
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedJSON, err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: expected an object", errMalformedJSON)
	}
	return f, nil
}

// text 返回字段的文本值。null、false、""、0、[]和{}均视为未提供，返回""
func (f fields) text(name string) string {
	raw := bytes.TrimSpace(f[name])
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case 'n', 'f':
		return ""
	case 't':
		return "true"
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '[', '{':
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return ""
		}
		switch c := v.(type) {
		case []any:
			if len(c) == 0 {
				return ""
			}
		case map[string]any:
			if len(c) == 0 {
				return ""
			}
		}
		return string(raw)
	default:
		if n, err := strconv.ParseFloat(string(raw), 64); err == nil && n == 0 {
			return ""
		}
		return string(raw)
	}
}

// integer 返回整数字段的文本值。JSON数字向零截断，字符串原样传递以严格解析
func (f fields) integer(name string) string {
	value := f.text(name)
	raw := bytes.TrimSpace(f[name])
	if value == "" || raw[0] == '"' {
		return value
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) >= math.MaxInt64 {
		return value
	}
	return strconv.FormatInt(int64(n), 10)
}

func (f fields) query() models.Query {
	return models.Query{
		Brand:        f.text(models.FieldBrand),
		Model:        f.text(models.FieldModel),
		Year:         f.integer(models.FieldYear),
		Mileage:      f.integer(models.FieldMileage),
		FuelType:     f.text(models.FieldFuelType),
		Transmission: f.text(models.FieldTransmission),
	}
}

func (f fields) recordInput() models.RecordInput {
	return models.RecordInput{
		Brand:        f.text(models.FieldBrand),
		Model:        f.text(models.FieldModel),
		Year:         f.integer(models.FieldYear),
		Mileage:      f.integer(models.FieldMileage),
		FuelType:     f.text(models.FieldFuelType),
		Transmission: f.text(models.FieldTransmission),
		Price:        f.text(models.FieldPrice),
	}
}

// echo 按客户端发送的原样返回查询字段
func (f fields) echo() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(queryFields))
	for _, name := range queryFields {
		if raw, ok := f[name]; ok {
			out[name] = raw
		}
	}
	return out
}
