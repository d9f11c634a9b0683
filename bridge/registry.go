package bridge

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/mcp"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Registry translates MCP tool descriptors into LLM function declarations.
// Translation fails closed: a descriptor the function-calling dialect cannot
// represent is an error, never a silent drop, so the declared set and the
// callable set stay identical.
type Registry struct {
	client mcp.ToolLister

	mu           sync.RWMutex
	busy         int
	fingerprint  uint64
	names        []string
	descriptors  map[string]mcp.ToolRetType
	declarations map[string]llms.Tool
}

// NewRegistry creates an empty registry over the given lister. Call Refresh
// to populate it.
func NewRegistry(client mcp.ToolLister) *Registry {
	return &Registry{
		client:       client,
		descriptors:  map[string]mcp.ToolRetType{},
		declarations: map[string]llms.Tool{},
	}
}

// Refresh fetches all descriptor pages from the server and rebuilds the
// translated set. The whole refresh fails if any single descriptor cannot be
// translated or if two descriptors share a name. A refresh that would change
// the fingerprint while a query is in flight is rejected, so a running query
// never observes a declaration set it did not send.
func (r *Registry) Refresh(ctx context.Context) error {
	tools, err := r.client.ListAllTools(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to list tools")
	}

	names := make([]string, 0, len(tools))
	descriptors := make(map[string]mcp.ToolRetType, len(tools))
	declarations := make(map[string]llms.Tool, len(tools))
	for _, tool := range tools {
		if _, ok := descriptors[tool.Name]; ok {
			return errors.Newf("duplicate tool name: %q", tool.Name)
		}
		params, err := translateInputSchema(tool.InputSchema)
		if err != nil {
			return errors.WithMessagef(err, "failed to translate tool %q", tool.Name)
		}
		description := ""
		if tool.Description != nil {
			description = *tool.Description
		}
		descriptors[tool.Name] = tool
		declarations[tool.Name] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: description,
				Parameters:  params,
			},
		}
		names = append(names, tool.Name)
	}
	sort.Strings(names)

	fp := fingerprintTools(names, declarations)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy > 0 && fp != r.fingerprint {
		return errors.Newf("tool descriptors changed while %d queries are in flight", r.busy)
	}
	r.names = names
	r.descriptors = descriptors
	r.declarations = declarations
	r.fingerprint = fp

	logger.ContextKV(ctx, xlog.DEBUG, "tools", len(names), "fingerprint", fp)
	return nil
}

// Declarations returns the translated tool set in name order. The returned
// slice is a copy.
func (r *Registry) Declarations() []llms.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decls := make([]llms.Tool, 0, len(r.names))
	for _, name := range r.names {
		decls = append(decls, r.declarations[name])
	}
	return decls
}

// Declaration returns the translated declaration for the named tool.
func (r *Registry) Declaration(name string) (llms.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decl, ok := r.declarations[name]
	return decl, ok
}

// Descriptor returns the raw MCP descriptor for the named tool.
func (r *Registry) Descriptor(name string) (mcp.ToolRetType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descriptors[name]
	return desc, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Fingerprint identifies the current descriptor set. Two registries with the
// same tools, descriptions and schemas produce the same value.
func (r *Registry) Fingerprint() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fingerprint
}

// acquire marks a query as using the current declaration set.
func (r *Registry) acquire() {
	r.mu.Lock()
	r.busy++
	r.mu.Unlock()
}

func (r *Registry) release() {
	r.mu.Lock()
	r.busy--
	r.mu.Unlock()
}

func fingerprintTools(names []string, declarations map[string]llms.Tool) uint64 {
	d := xxhash.New()
	for _, name := range names {
		fn := declarations[name].Function
		_, _ = d.WriteString(name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(fn.Description)
		_, _ = d.Write([]byte{0})
		if fn.Parameters != nil {
			b, _ := json.Marshal(fn.Parameters)
			_, _ = d.Write(b)
		}
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// translateInputSchema normalizes a raw MCP input schema and decodes it into
// the declaration dialect. A missing schema, or one without a top-level type,
// is treated as an empty object schema.
func translateInputSchema(input any) (*jsonschema.Schema, error) {
	raw := []byte(`{"type":"object"}`)
	if input != nil {
		b, err := json.Marshal(input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode input schema")
		}
		if string(b) != "null" {
			raw = b
		}
	}
	if !gjson.GetBytes(raw, "type").Exists() {
		var err error
		raw, err = sjson.SetBytes(raw, "type", "object")
		if err != nil {
			return nil, errors.Wrap(err, "failed to normalize input schema")
		}
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode input schema")
	}
	if s.Type != "object" {
		return nil, errors.Newf("unsupported input schema type: %q", s.Type)
	}
	if err := checkSupported(&s, "$"); err != nil {
		return nil, err
	}
	return &s, nil
}

// checkSupported walks a decoded schema and rejects constructs that cannot
// be expressed as a function declaration.
func checkSupported(s *jsonschema.Schema, path string) error {
	if s == nil {
		return nil
	}
	if s.Ref != "" {
		return errors.Newf("unsupported $ref at %s", path)
	}
	if len(s.AnyOf) > 0 || len(s.OneOf) > 0 || len(s.AllOf) > 0 {
		return errors.Newf("unsupported schema composition at %s", path)
	}
	if s.Not != nil {
		return errors.Newf("unsupported schema negation at %s", path)
	}
	if s.Type == "array" && s.Items == nil {
		return errors.Newf("array without items at %s", path)
	}
	if s.Items != nil {
		if err := checkSupported(s.Items, path+".items"); err != nil {
			return err
		}
	}
	if s.Properties != nil {
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			if err := checkSupported(pair.Value, path+"."+pair.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
