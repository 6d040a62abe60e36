package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelSize(t *testing.T) {
	testCases := []struct {
		in   string
		want ModelSize
	}{
		{"small", Small},
		{"SM", Small},
		{"processSM", Small},
		{" md ", Medium},
		{"Medium", Medium},
		{"lg", Large},
		{"processLG", Large},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseModelSize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseModelSize("trf")
	assert.ErrorIs(t, err, ErrUnknownModelSize)
}

func TestModelSizeMethod(t *testing.T) {
	assert.Equal(t, "processSM", Small.Method())
	assert.Equal(t, "processMD", Medium.Method())
	assert.Equal(t, "processLG", Large.Method())
	assert.False(t, ModelSize(7).Valid())
	assert.Equal(t, "ModelSize(7)", ModelSize(7).String())
}

func TestMapType(t *testing.T) {
	assert.Equal(t, EntityTypePerson, MapType("PERSON"))
	assert.Equal(t, EntityTypeOrganization, MapType("ORG"))
	assert.Equal(t, EntityTypeOrganization, MapType("NORP"))
	assert.Equal(t, EntityTypeLocation, MapType("GPE"))
	assert.Equal(t, EntityTypeLocation, MapType("LOC"))
	assert.Equal(t, EntityTypeNone, MapType("DATE"))
	assert.Equal(t, EntityTypeNone, MapType("org"))

	assert.Equal(t,
		[]EntityType{EntityTypeOrganization, EntityTypeLocation, EntityTypeOrganization},
		MapTypes([]string{"ORG", "GPE", "ORG"}),
	)
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("no such file")
	loadErr := fmt.Errorf("processSM: %w", NewModelLoadError("en_core_web_sm", cause))

	assert.ErrorIs(t, loadErr, ErrModelLoad)
	assert.ErrorIs(t, loadErr, cause)
	assert.NotErrorIs(t, loadErr, ErrInference)

	var mle *ModelLoadError
	require.ErrorAs(t, loadErr, &mle)
	assert.Equal(t, "en_core_web_sm", mle.Model)

	infErr := NewInferenceError("en_core_web_lg", cause)
	assert.ErrorIs(t, infErr, ErrInference)
	assert.Contains(t, infErr.Error(), "en_core_web_lg")
}

type echoProcessor struct{}

func (echoProcessor) ProcessSM(_ context.Context, s, _ string) (string, error) { return "sm:" + s, nil }
func (echoProcessor) ProcessMD(_ context.Context, s, _ string) (string, error) { return "md:" + s, nil }
func (echoProcessor) ProcessLG(_ context.Context, s, _ string) (string, error) { return "lg:" + s, nil }

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	for _, size := range ModelSizes {
		got, err := Dispatch(ctx, echoProcessor{}, size, "x", "")
		require.NoError(t, err)
		assert.Equal(t, map[ModelSize]string{Small: "sm:x", Medium: "md:x", Large: "lg:x"}[size], got)
	}
	_, err := Dispatch(ctx, echoProcessor{}, ModelSize(9), "x", "")
	assert.ErrorIs(t, err, ErrUnknownModelSize)
}
