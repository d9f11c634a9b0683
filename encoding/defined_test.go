package encoding

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/chatmodel"
	"github.com/effective-security/mcpbridge/encoding/dummy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateAlerts struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

func (s *stateAlerts) Unmarshal(bs []byte) error {
	s.State = string(bs)
	return nil
}

func Test_TypedOutputParser(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(stateAlerts{}, ModeJSON)
	require.NoError(t, err)
	require.NotNil(t, parser)

	assert.NotEmpty(t, parser.GetFormatInstructions())
	assert.Contains(t, parser.Type(), "stateAlerts")

	result, err := parser.Parse(`{"state": "TX", "count": 3}`)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "TX", result.State)
	assert.Equal(t, 3, result.Count)

	_, err = parser.Parse("{bad json}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalOutput))
}

func Test_TypedOutputParser_Validation(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(stateAlerts{}, ModePlainText)
	require.NoError(t, err)

	// The plain-text encoder has no schema to validate against, so
	// validation-enabled parsing still succeeds.
	parser.WithValidation(true)
	val, err := parser.Parse("no active alerts")
	require.NoError(t, err)
	require.NotNil(t, val)

	failing := &TypedOutputParser[stateAlerts]{
		enc:      &failingValidator{},
		name:     "bad",
		validate: true,
	}
	_, err = failing.Parse("no active alerts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to validate")
}

type failingValidator struct{ dummy.Encoder }

func (failingValidator) Validate(any) error            { return errors.New("fail validate") }
func (failingValidator) GetFormatInstructions() string { return "" }
