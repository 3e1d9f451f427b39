package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// entityExtractor runs its patterns over normalized text and post-processes
// the raw matches.
type entityExtractor struct {
	Type     EntityType
	Patterns []*regexp.Regexp
	Process  func(raw []string) []string
}

var (
	digitsRe   = regexp.MustCompile(`\d+`)
	nonDigitRe = regexp.MustCompile(`\D`)
)

// Patterns are written for Normalize output: no accents, no punctuation.
var defaultExtractors = []entityExtractor{
	{
		Type: EntityServiceName,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:servico|tratamento|consulta|aula|treino|sessao|corte|limpeza|avaliacao) de \w+`),
			regexp.MustCompile(`\b(?:fazer|quero|preciso) (?:um |uma )?\w+`),
		},
		Process: func(raw []string) []string {
			out := make([]string, 0, len(raw))
			for _, m := range raw {
				if len(m) > 2 {
					out = append(out, m)
				}
			}
			return out
		},
	},
	{
		Type: EntityDate,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{1,2} \d{1,2} \d{4}\b`),
			regexp.MustCompile(`\bdia \d{1,2}(?: \d{1,2})?\b`),
			regexp.MustCompile(`\b(?:hoje|amanha|segunda|terca|quarta|quinta|sexta|sabado|domingo)\b`),
			regexp.MustCompile(`\bproxim[oa]s? (?:segunda|terca|quarta|quinta|sexta|sabado|domingo)\b`),
		},
		Process: mapAll(normalizeDate),
	},
	{
		Type: EntityTime,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{1,2}h\d{2}\b`),
			regexp.MustCompile(`\b\d{1,2}h\b`),
			regexp.MustCompile(`\b(?:manha|tarde|noite|madrugada)\b`),
		},
		Process: mapAll(normalizeTime),
	},
	{
		Type: EntityPersonName,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:meu nome e|me chamo|sou o|sou a) [a-z]+(?: [a-z]+)?`),
		},
		Process: func(raw []string) []string {
			out := make([]string, 0, len(raw))
			for _, m := range raw {
				if name := personName(m); len(name) > 1 {
					out = append(out, name)
				}
			}
			return out
		},
	},
	{
		Type: EntityPhoneNumber,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{2} \d{4,5} \d{4}\b`),
			regexp.MustCompile(`\b\d{10,11}\b`),
		},
		Process: mapAll(normalizePhone),
	},
	{
		Type: EntityUrgencyLevel,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:urgente|urgencia|emergencia|prioridade|rapido|logo)\b`),
		},
		Process: mapAll(func(m string) string { return string(mapUrgencyLevel(m)) }),
	},
}

func mapAll(fn func(string) string) func([]string) []string {
	return func(raw []string) []string {
		out := make([]string, len(raw))
		for i, m := range raw {
			out[i] = fn(m)
		}
		return out
	}
}

// extractEntities emits one entity per processed match. The position is
// looked up from the raw match at the same index with strings.Index, so a
// repeated substring always reports its first occurrence, and a processor
// that drops matches shifts processed values against raw positions.
func extractEntities(message string, extractors []entityExtractor) []Entity {
	var entities []Entity
	for _, extractor := range extractors {
		var raw []string
		for _, pattern := range extractor.Patterns {
			raw = append(raw, pattern.FindAllString(message, -1)...)
		}
		if len(raw) == 0 {
			continue
		}

		for i, value := range extractor.Process(raw) {
			start := strings.Index(message, raw[i])
			entities = append(entities, Entity{
				Type:       extractor.Type,
				Value:      value,
				Confidence: 0.8 - float64(i)*0.1,
				Start:      start,
				End:        start + len(raw[i]),
			})
		}
	}
	return entities
}

var dateDisplay = map[string]string{
	"amanha":  "amanhã",
	"terca":   "terça",
	"sabado":  "sábado",
	"proxima": "próxima",
	"proximo": "próximo",
}

func normalizeDate(raw string) string {
	if digitsRe.MatchString(raw) {
		return strings.Join(digitsRe.FindAllString(raw, -1), "/")
	}
	words := strings.Fields(raw)
	for i, w := range words {
		if display, ok := dateDisplay[w]; ok {
			words[i] = display
		}
	}
	return strings.Join(words, " ")
}

func normalizeTime(raw string) string {
	parts := digitsRe.FindAllString(raw, -1)
	if len(parts) == 0 {
		if raw == "manha" {
			return "manhã"
		}
		return raw
	}
	hour, _ := strconv.Atoi(parts[0])
	minute := 0
	if len(parts) > 1 {
		minute, _ = strconv.Atoi(parts[1])
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func normalizePhone(raw string) string {
	return nonDigitRe.ReplaceAllString(raw, "")
}

var nameLeadIns = []string{"meu nome e ", "me chamo ", "sou o ", "sou a "}

func personName(raw string) string {
	for _, lead := range nameLeadIns {
		if strings.HasPrefix(raw, lead) {
			raw = strings.TrimPrefix(raw, lead)
			break
		}
	}
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Title(language.BrazilianPortuguese).String(raw)
}

func mapUrgencyLevel(term string) UrgencyLevel {
	switch term {
	case "urgente", "urgencia", "emergencia":
		return UrgencyHigh
	case "prioridade", "rapido", "logo":
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
