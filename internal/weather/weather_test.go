package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, Climate{200, 8}, Climate{0, -5}.Clamp())
	assert.Equal(t, Climate{800, 16}, Climate{1200, 30}.Clamp())
	assert.Equal(t, Climate{570, 10.5}, Climate{570, 10.5}.Clamp())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "mild, normal rainfall", Climate{570, 10.5}.Describe())
	assert.Equal(t, "hot, drought", Climate{300, 14}.Describe())
	assert.Equal(t, "cool, wet year", Climate{750, 8.5}.Describe())
}

func TestPreset(t *testing.T) {
	sc, err := Preset("warming")
	require.NoError(t, err)
	assert.Equal(t, 0.08, sc.TemperatureTrend)

	_, err = Preset("ice-age")
	assert.Error(t, err)
	assert.Contains(t, Presets(), "baseline")
}

func TestGeneratorDeterministic(t *testing.T) {
	sc, _ := Preset("baseline")
	a := NewGenerator(sc, 9, 2025)
	b := NewGenerator(sc, 9, 2025)
	for y := 2025; y < 2060; y++ {
		ca := a.ForYear(y)
		assert.Equal(t, ca, b.ForYear(y))
		assert.GreaterOrEqual(t, ca.Precipitation, MinPrecipitation)
		assert.LessOrEqual(t, ca.Precipitation, MaxPrecipitation)
		assert.GreaterOrEqual(t, ca.Temperature, MinTemperature)
		assert.LessOrEqual(t, ca.Temperature, MaxTemperature)
	}
}

func TestGeneratorSteadyHasNoNoise(t *testing.T) {
	sc, _ := Preset("steady")
	g := NewGenerator(sc, 3, 2025)
	assert.Equal(t, Climate{570, 10.5}, g.ForYear(2025))
	assert.Equal(t, Climate{570, 10.5}, g.ForYear(2040))
}

func TestGeneratorTrend(t *testing.T) {
	sc := Scenario{BasePrecipitation: 600, BaseTemperature: 10, PrecipitationTrend: -10, TemperatureTrend: 0.1}
	g := NewGenerator(sc, 1, 2025)
	c := g.ForYear(2035)
	assert.InDelta(t, 500, c.Precipitation, 1e-9)
	assert.InDelta(t, 11, c.Temperature, 1e-9)
	// Far enough out the trend runs into the slider limits.
	assert.Equal(t, Climate{200, 16}, g.ForYear(2125))
}

func TestDecodeScenario(t *testing.T) {
	var doc struct {
		Climate yaml.Node `yaml:"climate"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("climate:\n  preset: drought\n  temperature_trend: 0.1\n"), &doc))

	sc, err := DecodeScenario(&doc.Climate)
	require.NoError(t, err)
	assert.Equal(t, "drought", sc.Name)
	assert.Equal(t, 0.1, sc.TemperatureTrend)
	assert.Equal(t, -8.0, sc.PrecipitationTrend)

	sc, err = DecodeScenario(nil)
	require.NoError(t, err)
	assert.Equal(t, "baseline", sc.Name)
}

func TestDecodeScenarioUnknownKey(t *testing.T) {
	var doc struct {
		Climate yaml.Node `yaml:"climate"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("climate:\n  preset: drought\n  base_precipitaton: 300\n"), &doc))

	_, err := DecodeScenario(&doc.Climate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_precipitaton")

	require.NoError(t, yaml.Unmarshal([]byte("climate:\n  preset: drought\n  base_precipitation: 300\n"), &doc))
	sc, err := DecodeScenario(&doc.Climate)
	require.NoError(t, err)
	assert.Equal(t, 300.0, sc.BasePrecipitation)
}
