package trade

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// ErrInvalidPayload 标记交易指令不符合约定结构，HTTP 层据此回 400。
var ErrInvalidPayload = errors.New("invalid trade payload")

const (
	defaultSlippage = 50
	defaultDeadline = 60
	defaultMaxHops  = 3
)

// 交易指令的已知字段约束。未列出的嵌套字段一律放行并原样保留。
const tradeSchemaJSON = `{
	"type": "object",
	"required": ["side", "amount"],
	"properties": {
		"side":     {"type": "string", "minLength": 1},
		"amount":   {"type": "number"},
		"sender":   {"type": ["string", "null"]},
		"slippage": {"type": ["integer", "null"]},
		"deadline": {"type": ["integer", "null"]},
		"max_hops": {"type": ["integer", "null"]}
	}
}`

var tradeSchema = mustCompileSchema("trade_payload.json", tradeSchemaJSON)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(err)
	}
	return schema
}

// Payload 持有一条已校验的交易指令。
// raw 保留提交时的原始字节（落库用），doc 是解码后的文档（转发上游时套默认值）。
type Payload struct {
	raw []byte
	doc map[string]any
}

// ParsePayload 校验原始 JSON 并解析为 Payload。
// 校验失败全部归入 ErrInvalidPayload。
func ParsePayload(raw []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: 解析 JSON 失败: %v", ErrInvalidPayload, err)
	}
	if err := tradeSchema.Validate(normalizeNumbers(doc)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if side, _ := doc["side"].(string); strings.TrimSpace(side) == "" {
		return nil, fmt.Errorf("%w: side 不能为空", ErrInvalidPayload)
	}
	if err := checkAmount(doc["amount"]); err != nil {
		return nil, err
	}
	return &Payload{raw: raw, doc: doc}, nil
}

// checkAmount 要求 amount 是有限可解析的数值。
func checkAmount(v any) error {
	num, ok := v.(json.Number)
	if !ok {
		return fmt.Errorf("%w: amount 必须是数值", ErrInvalidPayload)
	}
	if _, err := decimal.NewFromString(num.String()); err != nil {
		return fmt.Errorf("%w: amount 不是有限数值: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Raw 返回提交时的原始字节，落库要求逐字节保真。
func (p *Payload) Raw() []byte {
	return p.raw
}

// UpstreamBody 返回转发上游的指令：缺省的 slippage/deadline/max_hops 补上默认值。
func (p *Payload) UpstreamBody() ([]byte, error) {
	doc := make(map[string]any, len(p.doc)+3)
	for k, v := range p.doc {
		doc[k] = v
	}
	if _, ok := doc["slippage"]; !ok {
		doc["slippage"] = defaultSlippage
	}
	if _, ok := doc["deadline"]; !ok {
		doc["deadline"] = defaultDeadline
	}
	if _, ok := doc["max_hops"]; !ok {
		doc["max_hops"] = defaultMaxHops
	}
	return json.Marshal(doc)
}

// normalizeNumbers 把 json.Number 转回 float64/int，jsonschema 校验需要标准类型。
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeNumbers(item)
		}
		return out
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
