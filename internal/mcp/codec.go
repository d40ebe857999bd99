package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Batch is a decoded request body: one element for a single request, one
// per array entry for a batch.
type Batch struct {
	Elements []Element
	IsBatch  bool
}

// Element is one entry of a body. Either Request is set, or Err describes
// why the entry is not a valid request; ID is whatever id could be salvaged
// for the error response.
type Element struct {
	Request *Request
	Err     *Error
	ID      json.RawMessage
}

// Decode parses a request body. It fails only when the body is not JSON at
// all; structurally invalid entries come back as elements with Err set.
// An empty array decodes to a single invalid element.
func Decode(data []byte) (*Batch, *Error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil, newParseError()
	}

	if data[0] != '[' {
		return &Batch{Elements: []Element{decodeElement(data)}}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, newParseError()
	}
	if len(raws) == 0 {
		return &Batch{Elements: []Element{{Err: newInvalidRequest("empty batch")}}}, nil
	}

	batch := &Batch{Elements: make([]Element, len(raws)), IsBatch: true}
	for i, raw := range raws {
		batch.Elements[i] = decodeElement(raw)
	}
	return batch, nil
}

func decodeElement(raw json.RawMessage) Element {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Element{Err: newInvalidRequest("request must be an object")}
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		// keep the id for the error response if it is usable
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(raw, &probe)
		id := probe.ID
		if validID(id) != nil {
			id = nil
		}
		return Element{Err: newInvalidRequest(describeUnmarshalError(err)), ID: id}
	}

	if err := Validate(&req); err != nil {
		id := req.ID
		if validID(id) != nil {
			id = nil
		}
		return Element{Err: err, ID: id}
	}
	return Element{Request: &req, ID: req.ID}
}

// Validate checks the protocol-required members of a request.
func Validate(req *Request) *Error {
	if req.JSONRPC != JSONRPCVersion {
		return newInvalidRequest(`jsonrpc must be "2.0"`)
	}
	if req.Method == "" {
		return newInvalidRequest("method is required")
	}
	if err := validID(req.ID); err != nil {
		return err
	}
	if len(req.Params) > 0 && !isNull(req.Params) {
		switch req.Params[0] {
		case '{', '[':
		default:
			return newInvalidRequest("params must be an object or array")
		}
	}
	return nil
}

// validID accepts an absent id, a string, a number or null.
func validID(id json.RawMessage) *Error {
	if id == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 {
		return newInvalidRequest("id must be a string, number or null")
	}
	switch c := trimmed[0]; {
	case c == '"', c == 'n', c == '-', c >= '0' && c <= '9':
		return nil
	}
	return newInvalidRequest("id must be a string, number or null")
}

func describeUnmarshalError(err error) string {
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)
	}
	return err.Error()
}

// Encode serializes the responses to send back. Nil entries (notifications)
// are dropped; a batch becomes an array in the given order. It returns nil
// when nothing is to be sent.
func Encode(responses []*Response, isBatch bool) ([]byte, error) {
	out := make([]*Response, 0, len(responses))
	for _, r := range responses {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	if !isBatch {
		return json.Marshal(out[0])
	}
	return json.Marshal(out)
}

// DecodeResponses parses a response body written by Encode.
func DecodeResponses(data []byte) ([]*Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var out []*Response
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode responses: %w", err)
		}
		return out, nil
	}
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return []*Response{&r}, nil
}
