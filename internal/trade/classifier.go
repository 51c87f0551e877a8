package trade

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"
)

// Outcome 是分类器对一次上游响应的最终裁决。
// Failed=true 时 Error 必填；Failed=false 时 Body 是应原样返回给调用方的内容。
type Outcome struct {
	Failed bool
	Error  string
	Body   []byte
}

// Classify 把上游状态码 + body 映射为成功/失败，判定顺序固定：
//  1. 状态码非 200 → 失败；
//  2. body 为合法 JSON 且 success==false 或存在 error 字段 → 失败；
//  3. 其余 → 成功，body 原样透传。
//
// 失败原因取 body 声明的 error 字段，没有则取原始文本。
// 状态码 200 且 body 无法解析时视为成功，返回 {"error": <原始文本>} 形式的兜底
// body（与上游网关返回非 JSON 错误页时的安全解析行为一致）。
func Classify(status int, body []byte) Outcome {
	raw := string(body)
	parsed := gjson.ValidBytes(body)

	errMsg := raw
	if parsed {
		if field := gjson.GetBytes(body, "error"); field.Exists() {
			errMsg = field.String()
		}
	}

	if status != http.StatusOK {
		return Outcome{Failed: true, Error: errMsg}
	}
	if parsed {
		if flag := gjson.GetBytes(body, "success"); flag.Exists() && flag.Type == gjson.False {
			return Outcome{Failed: true, Error: errMsg}
		}
		if gjson.GetBytes(body, "error").Exists() {
			return Outcome{Failed: true, Error: errMsg}
		}
		return Outcome{Body: body}
	}
	fallback, _ := json.Marshal(map[string]string{"error": raw})
	return Outcome{Body: fallback}
}
