package tile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess_Float32(t *testing.T) {
	dims := Dimensions{Width: 2, Height: 2}
	data := EncodeFloat32([]float32{10, -5, 42, 7})

	pd, err := Preprocess(data, dims, Float32, 1, -32768)
	require.NoError(t, err)
	assert.Equal(t, []float32{-5}, pd.MinValues)
	assert.Equal(t, []float32{42}, pd.MaxValues)
	assert.Equal(t, []bool{false}, pd.HasMissingData)
}

func TestPreprocess_MissingData(t *testing.T) {
	dims := Dimensions{Width: 3, Height: 1}
	data := EncodeFloat32([]float32{-32768, 3, float32(math.NaN())})

	pd, err := Preprocess(data, dims, Float32, 1, -32768)
	require.NoError(t, err)
	assert.Equal(t, float32(3), pd.MinValues[0])
	assert.Equal(t, float32(3), pd.MaxValues[0])
	assert.True(t, pd.HasMissingData[0])
}

func TestPreprocess_Uint8Channels(t *testing.T) {
	dims := Dimensions{Width: 2, Height: 1}
	data := []byte{1, 200, 9, 0}

	pd, err := Preprocess(data, dims, Uint8, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 200}, pd.MinValues)
	assert.Equal(t, []float32{9, 200}, pd.MaxValues)
	assert.Equal(t, []bool{false, true}, pd.HasMissingData)
}

func TestPreprocess_SizeMismatch(t *testing.T) {
	_, err := Preprocess([]byte{1, 2, 3}, Dimensions{Width: 2, Height: 2}, Float32, 1, 0)
	require.Error(t, err)

	_, err = Preprocess(nil, Dimensions{Width: 1, Height: 1}, Float32, 0, 0)
	require.Error(t, err)
}

func TestFromIOResult(t *testing.T) {
	assert.Equal(t, StatusUnavailable, FromIOResult(nil).Status)

	res := &IOResult{ImageData: []byte{1}, Dimensions: Dimensions{Width: 1, Height: 1}, DataType: Uint8, Channels: 1}
	tl := FromIOResult(res)
	assert.Equal(t, StatusOK, tl.Status)
	assert.Equal(t, NewPixelRegion(0, 0, 1, 1), tl.FullRegion())
	assert.Equal(t, "ok", tl.Status.String())
}
