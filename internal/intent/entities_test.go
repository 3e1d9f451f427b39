package intent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Olá, Tudo BEM?", expected: "ola tudo bem"},
		{input: "  quero   agendar!!! ", expected: "quero agendar"},
		{input: "Amanhã às 15h", expected: "amanha as 15h"},
		{input: "(11) 98765-4321", expected: "11 98765 4321"},
		{input: "ação/reação", expected: "acao reacao"},
		{input: "linha1\nlinha2\ttab", expected: "linha1 linha2 tab"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Olá, Tudo BEM?",
		"Straße ßß",
		"emoji 😀 ok",
		"İstanbul",
		"ÇÃO Ñandú",
		"snake_case e números ١٢٣",
		" espaço largo",
		"",
	}

	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		typ      EntityType
		expected []Entity
	}{
		{
			name:    "phone with area code",
			message: Normalize("meu telefone é (11) 98765-4321"),
			typ:     EntityPhoneNumber,
			expected: []Entity{
				{Type: EntityPhoneNumber, Value: "11987654321", Confidence: 0.8, Start: 15, End: 28},
			},
		},
		{
			name:    "compact phone",
			message: "ligue 11987654321",
			typ:     EntityPhoneNumber,
			expected: []Entity{
				{Type: EntityPhoneNumber, Value: "11987654321", Confidence: 0.8, Start: 6, End: 17},
			},
		},
		{
			name:    "times in pattern order",
			message: "as 15h ou 9h30",
			typ:     EntityTime,
			expected: []Entity{
				{Type: EntityTime, Value: "09:30", Confidence: 0.8, Start: 10, End: 14},
				{Type: EntityTime, Value: "15:00", Confidence: 0.7, Start: 3, End: 6},
			},
		},
		{
			name:    "numeric date",
			message: Normalize("pode ser 12/05/2025?"),
			typ:     EntityDate,
			expected: []Entity{
				{Type: EntityDate, Value: "12/05/2025", Confidence: 0.8, Start: 9, End: 19},
			},
		},
		{
			name:    "repeated substring reports first occurrence",
			message: "amanha ou amanha",
			typ:     EntityDate,
			expected: []Entity{
				{Type: EntityDate, Value: "amanhã", Confidence: 0.8, Start: 0, End: 6},
				{Type: EntityDate, Value: "amanhã", Confidence: 0.7, Start: 0, End: 6},
			},
		},
		{
			name:    "person name",
			message: Normalize("Meu nome é João Silva"),
			typ:     EntityPersonName,
			expected: []Entity{
				{Type: EntityPersonName, Value: "Joao Silva", Confidence: 0.8, Start: 0, End: 21},
			},
		},
		{
			name:    "urgency level",
			message: "preciso disso urgente",
			typ:     EntityUrgencyLevel,
			expected: []Entity{
				{Type: EntityUrgencyLevel, Value: "alta", Confidence: 0.8, Start: 14, End: 21},
			},
		},
		{
			name:     "morning is not found inside tomorrow",
			message:  "amanha",
			typ:      EntityTime,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []Entity
			for _, e := range extractEntities(tt.message, defaultExtractors) {
				if e.Type == tt.typ {
					got = append(got, e)
				}
			}
			require.Len(t, got, len(tt.expected))
			for i := range tt.expected {
				assert.Equal(t, tt.expected[i].Value, got[i].Value)
				assert.InDelta(t, tt.expected[i].Confidence, got[i].Confidence, 1e-9)
				assert.Equal(t, tt.expected[i].Start, got[i].Start)
				assert.Equal(t, tt.expected[i].End, got[i].End)
			}
		})
	}
}

func TestExtractEntities_ConfidenceIsNotClamped(t *testing.T) {
	message := strings.TrimSpace(strings.Repeat("hoje ", 10))

	var dates []Entity
	for _, e := range extractEntities(message, defaultExtractors) {
		if e.Type == EntityDate {
			dates = append(dates, e)
		}
	}

	require.Len(t, dates, 10)
	assert.InDelta(t, 0.8, dates[0].Confidence, 1e-9)
	assert.InDelta(t, -0.1, dates[9].Confidence, 1e-9)
	for _, d := range dates {
		assert.Equal(t, 0, d.Start)
	}
}

func TestNormalizeTime(t *testing.T) {
	assert.Equal(t, "15:00", normalizeTime("15h"))
	assert.Equal(t, "09:30", normalizeTime("9h30"))
	assert.Equal(t, "manhã", normalizeTime("manha"))
	assert.Equal(t, "tarde", normalizeTime("tarde"))
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "amanhã", normalizeDate("amanha"))
	assert.Equal(t, "próxima terça", normalizeDate("proxima terca"))
	assert.Equal(t, "12/05", normalizeDate("dia 12 05"))
	assert.Equal(t, "hoje", normalizeDate("hoje"))
}

func TestMapUrgencyLevel(t *testing.T) {
	assert.Equal(t, UrgencyHigh, mapUrgencyLevel("emergencia"))
	assert.Equal(t, UrgencyMedium, mapUrgencyLevel("rapido"))
	assert.Equal(t, UrgencyLow, mapUrgencyLevel("amanha"))
}
