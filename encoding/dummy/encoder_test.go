package dummy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alertSummary struct {
	State string
	Text  string
}

func (a alertSummary) String() string {
	return a.Text
}

func Test_Encoder_PassThrough(t *testing.T) {
	enc := NewEncoder()
	assert.Empty(t, enc.GetFormatInstructions())
	require.NoError(t, enc.Validate(nil))

	bs, err := enc.Marshal(alertSummary{State: "TX", Text: "Severe thunderstorm warning"})
	require.NoError(t, err)
	assert.Equal(t, "Severe thunderstorm warning", string(bs))

	bs, err = enc.Marshal("plain answer")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", string(bs))

	var out string
	require.NoError(t, enc.Unmarshal([]byte("final text"), &out))
	assert.Equal(t, "final text", out)
}

func Test_StreamEncoder_Forwards(t *testing.T) {
	enc := NewStreamEncoder()
	assert.Empty(t, enc.GetFormatInstructions())

	ch := make(chan string, 2)
	ch <- "first"
	ch <- "second"
	close(ch)

	var got []any
	for v := range enc.Read(context.Background(), ch) {
		got = append(got, v)
	}
	assert.Equal(t, []any{"first", "second"}, got)
}

func Test_StreamEncoder_Canceled(t *testing.T) {
	enc := NewStreamEncoder()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered and never closed: the reader must still stop.
	ch := make(chan string)
	out := enc.Read(ctx, ch)
	_, ok := <-out
	assert.False(t, ok)
}
