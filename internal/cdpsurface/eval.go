package cdpsurface

import (
	"encoding/json"

	"github.com/dgnsrekt/tv_annotator/internal/errcode"
)

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

const jsPreamble = `
var A = window.__annotator;
if (!A) { return JSON.stringify({ok:false,error_code:"` + errcode.APIUnavailable + `",error_message:"chart page not loaded"}); }
`

// jsCall builds an eval body that calls window.__annotator[method](args...)
// and returns its result in the envelope.
func jsCall(method string, args ...any) string {
	body := jsPreamble + "var out = A." + method + "("
	for i, a := range args {
		if i > 0 {
			body += ", "
		}
		body += jsJSON(a)
	}
	body += ");\nreturn JSON.stringify({ok:true,data:(out === undefined ? null : out)});"
	return wrapJSEval(body)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// buildIIFE wraps body so thrown errors come back as an envelope. Thrown
// {code, message} objects keep their code.
func buildIIFE(async bool, body string) string {
	prefix := "(function(){\n"
	if async {
		prefix = "(async function(){\n"
	}
	return prefix + `try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:(err && err.code) || "` + errcode.EvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

func wrapJSEval(body string) string { return buildIIFE(false, body) }

// decodeEnvelope unpacks an eval result into out.
func decodeEnvelope(raw string, out any) error {
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return errcode.New(errcode.EvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = errcode.EvalFailure
		}
		return errcode.New(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errcode.New(errcode.EvalFailure, "invalid evaluation data", err)
	}
	return nil
}
