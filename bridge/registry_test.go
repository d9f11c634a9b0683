package bridge

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/mcp"
	"github.com/effective-security/mcpbridge/mocks/mockmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeLister struct {
	tools []mcp.ToolRetType
	err   error
}

func (f *fakeLister) ListAllTools(_ context.Context) ([]mcp.ToolRetType, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tools, nil
}

func forecastTool() mcp.ToolRetType {
	desc := "Get weather forecast for a location"
	return mcp.ToolRetType{
		Name:        "get_forecast",
		Description: &desc,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"latitude":  map[string]any{"type": "number"},
				"longitude": map[string]any{"type": "number"},
			},
			"required": []any{"latitude", "longitude"},
		},
	}
}

func schemaTool(name string, schema any) mcp.ToolRetType {
	return mcp.ToolRetType{
		Name:        name,
		InputSchema: schema,
	}
}

func Test_Registry_Refresh(t *testing.T) {
	lister := &fakeLister{tools: []mcp.ToolRetType{forecastTool(), alertsTool()}}
	r := NewRegistry(lister)
	require.NoError(t, r.Refresh(context.Background()))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"get_alerts", "get_forecast"}, r.Names())

	decls := r.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "get_alerts", decls[0].Function.Name)
	assert.Equal(t, "get_forecast", decls[1].Function.Name)
	for _, decl := range decls {
		assert.Equal(t, "function", decl.Type)
		assert.NotEmpty(t, decl.Function.Description)
		require.NotNil(t, decl.Function.Parameters)
		assert.Equal(t, "object", decl.Function.Parameters.Type)
	}
	assert.Equal(t, []string{"state"}, decls[0].Function.Parameters.Required)

	decl, ok := r.Declaration("get_alerts")
	require.True(t, ok)
	assert.Equal(t, "get_alerts", decl.Function.Name)
	_, ok = r.Declaration("unknown")
	assert.False(t, ok)

	desc, ok := r.Descriptor("get_forecast")
	require.True(t, ok)
	assert.Equal(t, "get_forecast", desc.Name)
	_, ok = r.Descriptor("unknown")
	assert.False(t, ok)

	assert.NotZero(t, r.Fingerprint())
}

func Test_Registry_TranslateDefaults(t *testing.T) {
	missingType := map[string]any{
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
	}
	lister := &fakeLister{tools: []mcp.ToolRetType{
		schemaTool("no_schema", nil),
		schemaTool("no_type", missingType),
	}}
	r := NewRegistry(lister)
	require.NoError(t, r.Refresh(context.Background()))

	decl, ok := r.Declaration("no_schema")
	require.True(t, ok)
	assert.Equal(t, "object", decl.Function.Parameters.Type)
	assert.Empty(t, decl.Function.Description)

	decl, ok = r.Declaration("no_type")
	require.True(t, ok)
	assert.Equal(t, "object", decl.Function.Parameters.Type)
	prop, ok := decl.Function.Parameters.Properties.Get("city")
	require.True(t, ok)
	assert.Equal(t, "string", prop.Type)
}

func Test_Registry_RefreshFailsClosed(t *testing.T) {
	tcases := []struct {
		name string
		tool mcp.ToolRetType
		err  string
	}{
		{
			name: "composition",
			tool: schemaTool("multi", map[string]any{
				"type":  "object",
				"anyOf": []any{map[string]any{"type": "string"}},
			}),
			err: "unsupported schema composition at $",
		},
		{
			name: "nested composition",
			tool: schemaTool("multi", map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tags": map[string]any{
						"oneOf": []any{map[string]any{"type": "string"}},
					},
				},
			}),
			err: "unsupported schema composition at $.tags",
		},
		{
			name: "ref",
			tool: schemaTool("ref", map[string]any{
				"type": "object",
				"$ref": "#/$defs/params",
			}),
			err: "unsupported $ref at $",
		},
		{
			name: "negation",
			tool: schemaTool("neg", map[string]any{
				"type": "object",
				"not":  map[string]any{"type": "string"},
			}),
			err: "unsupported schema negation at $",
		},
		{
			name: "array without items",
			tool: schemaTool("arr", map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ids": map[string]any{"type": "array"},
				},
			}),
			err: "array without items at $.ids",
		},
		{
			name: "non object",
			tool: schemaTool("str", map[string]any{"type": "string"}),
			err:  `unsupported input schema type: "string"`,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			lister := &fakeLister{tools: []mcp.ToolRetType{alertsTool()}}
			r := NewRegistry(lister)
			require.NoError(t, r.Refresh(context.Background()))

			lister.tools = []mcp.ToolRetType{alertsTool(), tc.tool}
			err := r.Refresh(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
			assert.Contains(t, err.Error(), tc.tool.Name)

			// the failed refresh left the previous set intact
			assert.Equal(t, []string{"get_alerts"}, r.Names())
		})
	}
}

func Test_Registry_DuplicateName(t *testing.T) {
	lister := &fakeLister{tools: []mcp.ToolRetType{alertsTool(), alertsTool()}}
	r := NewRegistry(lister)
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate tool name: "get_alerts"`)
	assert.Equal(t, 0, r.Len())
}

func Test_Registry_EmptySet(t *testing.T) {
	r := NewRegistry(&fakeLister{})
	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Names())
	assert.Empty(t, r.Declarations())
}

func Test_Registry_ListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := mockmcp.NewMockToolLister(ctrl)
	lister.EXPECT().ListAllTools(gomock.Any()).Return(nil, errors.New("connection reset"))

	r := NewRegistry(lister)
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list tools")
	assert.Contains(t, err.Error(), "connection reset")
}

func Test_Registry_Fingerprint(t *testing.T) {
	first := NewRegistry(&fakeLister{tools: []mcp.ToolRetType{alertsTool(), forecastTool()}})
	require.NoError(t, first.Refresh(context.Background()))
	second := NewRegistry(&fakeLister{tools: []mcp.ToolRetType{forecastTool(), alertsTool()}})
	require.NoError(t, second.Refresh(context.Background()))

	// descriptor order does not matter
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	changed := alertsTool()
	desc := "Different description"
	changed.Description = &desc
	third := NewRegistry(&fakeLister{tools: []mcp.ToolRetType{changed, forecastTool()}})
	require.NoError(t, third.Refresh(context.Background()))
	assert.NotEqual(t, first.Fingerprint(), third.Fingerprint())
}

func Test_Registry_RefreshWhileBusy(t *testing.T) {
	lister := &fakeLister{tools: []mcp.ToolRetType{alertsTool()}}
	r := NewRegistry(lister)
	require.NoError(t, r.Refresh(context.Background()))
	fp := r.Fingerprint()

	r.acquire()

	// an identical set is fine while queries are in flight
	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, fp, r.Fingerprint())

	lister.tools = []mcp.ToolRetType{alertsTool(), forecastTool()}
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool descriptors changed while 1 queries are in flight")
	assert.Equal(t, []string{"get_alerts"}, r.Names())

	r.release()

	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, []string{"get_alerts", "get_forecast"}, r.Names())
	assert.NotEqual(t, fp, r.Fingerprint())
}
