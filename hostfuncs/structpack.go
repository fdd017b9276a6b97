package hostfuncs

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
)

// StructRequest packs Values or unpacks Data according to Format.
// Format follows the struct module: an optional byte order prefix
// (@ = < > !) followed by codes x b B ? h H i I l L q Q f d, each with an
// optional repeat count. Native order is little-endian without padding.
type StructRequest struct {
	Format string `json:"format"`
	Values []any  `json:"values,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

// PackResponse carries packed bytes (base64 in JSON).
type PackResponse struct {
	Data []byte `json:"data"`
}

// UnpackResponse carries unpacked values.
type UnpackResponse struct {
	Values []any `json:"values"`
}

// SizeResponse carries the byte size of a format.
type SizeResponse struct {
	Size int `json:"size"`
}

type structField struct {
	code byte
	size int
}

var structSizes = map[byte]int{
	'x': 1, 'b': 1, 'B': 1, '?': 1,
	'h': 2, 'H': 2,
	'i': 4, 'I': 4, 'l': 4, 'L': 4, 'f': 4,
	'q': 8, 'Q': 8, 'd': 8,
}

// maxStructFields bounds the expanded field count of a format.
const maxStructFields = 1 << 16

func parseStructFormat(format string) (binary.ByteOrder, []structField, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if format != "" {
		switch format[0] {
		case '@', '=', '<':
			format = format[1:]
		case '>', '!':
			order = binary.BigEndian
			format = format[1:]
		}
	}

	var fields []structField
	for i := 0; i < len(format); {
		c := format[i]
		if c == ' ' {
			i++
			continue
		}
		count := 1
		if c >= '0' && c <= '9' {
			j := i
			for j < len(format) && format[j] >= '0' && format[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(format[i:j])
			if err != nil || j == len(format) {
				return nil, nil, argErrorf("repeat count without format code")
			}
			count, i, c = n, j, format[j]
		}
		size, ok := structSizes[c]
		if !ok {
			return nil, nil, argErrorf("bad char in struct format: %q", c)
		}
		if len(fields)+count > maxStructFields {
			return nil, nil, argErrorf("struct format expands to more than %d fields", maxStructFields)
		}
		for k := 0; k < count; k++ {
			fields = append(fields, structField{code: c, size: size})
		}
		i++
	}
	return order, fields, nil
}

func structValue(v any) (float64, bool, error) {
	switch n := v.(type) {
	case float64:
		return n, false, nil
	case bool:
		if n {
			return 1, true, nil
		}
		return 0, true, nil
	case json.Number:
		f, err := n.Float64()
		return f, false, err
	default:
		return 0, false, argErrorf("unsupported value %v of type %T", v, v)
	}
}

func packStruct(req StructRequest) (PackResponse, error) {
	order, fields, err := parseStructFormat(req.Format)
	if err != nil {
		return PackResponse{}, err
	}

	var out []byte
	vi := 0
	for _, f := range fields {
		if f.code == 'x' {
			out = append(out, 0)
			continue
		}
		if vi >= len(req.Values) {
			return PackResponse{}, argErrorf("pack expected more items for format %q", req.Format)
		}
		v, _, err := structValue(req.Values[vi])
		if err != nil {
			return PackResponse{}, err
		}
		vi++

		buf := make([]byte, f.size)
		switch f.code {
		case 'b', 'B', '?':
			if f.code == '?' && v != 0 {
				v = 1
			}
			buf[0] = byte(int64(v))
		case 'h', 'H':
			order.PutUint16(buf, uint16(int64(v)))
		case 'i', 'I', 'l', 'L':
			order.PutUint32(buf, uint32(int64(v)))
		case 'q':
			order.PutUint64(buf, uint64(int64(v)))
		case 'Q':
			order.PutUint64(buf, uint64(v))
		case 'f':
			order.PutUint32(buf, math.Float32bits(float32(v)))
		case 'd':
			order.PutUint64(buf, math.Float64bits(v))
		}
		out = append(out, buf...)
	}
	if vi != len(req.Values) {
		return PackResponse{}, argErrorf("pack expected %d items, got %d", vi, len(req.Values))
	}
	return PackResponse{Data: out}, nil
}

func unpackStruct(req StructRequest) (UnpackResponse, error) {
	order, fields, err := parseStructFormat(req.Format)
	if err != nil {
		return UnpackResponse{}, err
	}
	size := 0
	for _, f := range fields {
		size += f.size
	}
	if len(req.Data) != size {
		return UnpackResponse{}, argErrorf("unpack requires a buffer of %d bytes, got %d", size, len(req.Data))
	}

	values := make([]any, 0, len(fields))
	data := req.Data
	for _, f := range fields {
		chunk := data[:f.size]
		data = data[f.size:]
		switch f.code {
		case 'x':
			continue
		case 'b':
			values = append(values, int8(chunk[0]))
		case 'B':
			values = append(values, chunk[0])
		case '?':
			values = append(values, chunk[0] != 0)
		case 'h':
			values = append(values, int16(order.Uint16(chunk)))
		case 'H':
			values = append(values, order.Uint16(chunk))
		case 'i', 'l':
			values = append(values, int32(order.Uint32(chunk)))
		case 'I', 'L':
			values = append(values, order.Uint32(chunk))
		case 'q':
			values = append(values, int64(order.Uint64(chunk)))
		case 'Q':
			values = append(values, order.Uint64(chunk))
		case 'f':
			values = append(values, math.Float32frombits(order.Uint32(chunk)))
		case 'd':
			values = append(values, math.Float64frombits(order.Uint64(chunk)))
		}
	}
	return UnpackResponse{Values: values}, nil
}

// StructBundle returns the members of the struct module.
func StructBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		"pack": NewJSONHandler(func(_ context.Context, req StructRequest) (PackResponse, error) {
			return packStruct(req)
		}),
		"unpack": NewJSONHandler(func(_ context.Context, req StructRequest) (UnpackResponse, error) {
			return unpackStruct(req)
		}),
		"calcsize": NewJSONHandler(func(_ context.Context, req StructRequest) (SizeResponse, error) {
			_, fields, err := parseStructFormat(req.Format)
			if err != nil {
				return SizeResponse{}, err
			}
			size := 0
			for _, f := range fields {
				size += f.size
			}
			return SizeResponse{Size: size}, nil
		}),
	})
}

func structModule() ModuleDef {
	return ModuleDef{
		Name: "struct",
		Doc:  "pack and unpack binary records",
		New:  static(StructBundle()),
		Requests: map[string]any{
			"pack": StructRequest{}, "unpack": StructRequest{}, "calcsize": StructRequest{},
		},
	}
}
