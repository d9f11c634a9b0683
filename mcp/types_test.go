package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_WireFormat(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		data, err := json.Marshal(NewTextContent("hello"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"text","text":"hello"}`, string(data))

		var c Content
		require.NoError(t, json.Unmarshal(data, &c))
		require.NotNil(t, c.TextContent)
		assert.Equal(t, "hello", c.TextContent.Text)
	})

	t.Run("image", func(t *testing.T) {
		c := Content{
			Type:         ContentTypeImage,
			ImageContent: &ImageContent{Data: "aGk=", MimeType: "image/png"},
		}
		data, err := json.Marshal(c)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"image","data":"aGk=","mimeType":"image/png"}`, string(data))
	})

	t.Run("resource nests under a resource member", func(t *testing.T) {
		c := Content{
			Type: ContentTypeEmbeddedResource,
			EmbeddedResource: &EmbeddedResource{
				Uri:      "file:///tmp/report.txt",
				MimeType: "text/plain",
				Text:     "ok",
			},
		}
		data, err := json.Marshal(c)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"resource","resource":{"uri":"file:///tmp/report.txt","mimeType":"text/plain","text":"ok"}}`, string(data))

		var parsed Content
		require.NoError(t, json.Unmarshal(data, &parsed))
		require.NotNil(t, parsed.EmbeddedResource)
		assert.Equal(t, "file:///tmp/report.txt", parsed.EmbeddedResource.Uri)
	})

	t.Run("unknown tag", func(t *testing.T) {
		var c Content
		err := json.Unmarshal([]byte(`{"type":"audio"}`), &c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown content type: "audio"`)

		_, err = json.Marshal(Content{Type: ContentType("audio")})
		require.Error(t, err)
	})

	t.Run("unset variant", func(t *testing.T) {
		_, err := json.Marshal(Content{Type: ContentTypeText})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "text content is not set")
	})
}
