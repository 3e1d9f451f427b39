// internal/intent/classifier.go
package intent

import (
	"math"
	"sort"
	"strings"
)

const (
	// minIntentScore is the raw score an intent must exceed to be a candidate.
	minIntentScore = 0.1

	firstContactGreetingBonus = 0.3

	keywordShare = 0.6
	phraseShare  = 0.4
)

// fallbackIntent is returned when no pattern scores above minIntentScore.
var fallbackIntent = PriorIntent{Type: IntentOther, Confidence: 0.5}

// Classifier is a rule-table intent classifier. It is immutable after
// NewClassifier and safe for concurrent use.
type Classifier struct {
	patterns       []intentPatterns
	extractors     []entityExtractor
	flowBonus      map[intentFlow]float64
	domainBoosts   map[BusinessDomain]map[IntentType]float64
	domainKeywords []domainKeywords
	positive       []string
	negative       []string
}

// NewClassifier builds a classifier over the default Portuguese tables. All
// table terms go through Normalize so they compare against normalized text.
func NewClassifier() *Classifier {
	patterns := make([]intentPatterns, len(defaultPatterns))
	for i, p := range defaultPatterns {
		groups := make([]PatternGroup, len(p.Groups))
		for j, g := range p.Groups {
			groups[j] = PatternGroup{
				Keywords: normalizeAll(g.Keywords),
				Phrases:  normalizeAll(g.Phrases),
				Weight:   g.Weight,
			}
		}
		patterns[i] = intentPatterns{Intent: p.Intent, Groups: groups}
	}

	keywords := make([]domainKeywords, len(defaultDomainKeywords))
	for i, d := range defaultDomainKeywords {
		keywords[i] = domainKeywords{Domain: d.Domain, Keywords: normalizeAll(d.Keywords)}
	}

	return &Classifier{
		patterns:       patterns,
		extractors:     defaultExtractors,
		flowBonus:      defaultFlowBonus,
		domainBoosts:   defaultDomainBoosts,
		domainKeywords: keywords,
		positive:       normalizeAll(positiveWords),
		negative:       normalizeAll(negativeWords),
	}
}

// AnalyzeIntent classifies one inbound message. It never fails: without a
// matching pattern the result is the "other" intent at 0.5 confidence.
func (c *Classifier) AnalyzeIntent(message string, tc TenantContext, history []PriorIntent) *Intent {
	normalized := Normalize(message)
	entities := extractEntities(normalized, c.extractors)

	candidates := c.scoreIntents(normalized)
	c.applyContextBoosts(candidates, tc, history)

	best := fallbackIntent
	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Confidence > candidates[j].Confidence
		})
		best = candidates[0]
	}

	ictx := Context{
		BusinessDomain:   tc.domain(),
		ConversationTurn: len(history),
		UrgencyLevel:     c.urgencyLevel(normalized, entities),
		Sentiment:        c.sentiment(normalized),
	}
	if tc.CurrentIntent != nil {
		ictx.PreviousIntent = tc.CurrentIntent.Type
	}

	if entities == nil {
		entities = []Entity{}
	}
	return &Intent{
		Type:       best.Type,
		Confidence: best.Confidence,
		Entities:   entities,
		Context:    ictx,
	}
}

// RouteToDomain returns the tenant's configured domain, or infers one from
// the extracted entity values.
func (c *Classifier) RouteToDomain(in *Intent, tc TenantContext) BusinessDomain {
	if d := tc.domain(); d != "" {
		return d
	}
	if in == nil {
		return DomainOther
	}
	for _, dk := range c.domainKeywords {
		for _, entity := range in.Entities {
			value := Normalize(entity.Value)
			for _, keyword := range dk.Keywords {
				if strings.Contains(value, keyword) {
					return dk.Domain
				}
			}
		}
	}
	return DomainOther
}

// scoreIntents returns every intent whose best group scores above
// minIntentScore, in table order.
func (c *Classifier) scoreIntents(normalized string) []PriorIntent {
	var candidates []PriorIntent
	for _, p := range c.patterns {
		best := 0.0
		for _, g := range p.Groups {
			best = math.Max(best, scoreGroup(normalized, g))
		}
		if best > minIntentScore {
			candidates = append(candidates, PriorIntent{Type: p.Intent, Confidence: best})
		}
	}
	return candidates
}

func scoreGroup(message string, g PatternGroup) float64 {
	score := matchRatio(message, g.Keywords)*keywordShare + matchRatio(message, g.Phrases)*phraseShare
	return score * g.Weight
}

// matchRatio is the share of terms contained in the message; an empty term
// list contributes nothing.
func matchRatio(message string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	matches := 0
	for _, term := range terms {
		if strings.Contains(message, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(terms))
}

func (c *Classifier) applyContextBoosts(candidates []PriorIntent, tc TenantContext, history []PriorIntent) {
	boosts := c.domainBoosts[tc.domain()]
	for i := range candidates {
		boost := 0.0
		if tc.CurrentIntent != nil {
			boost += c.flowBonus[intentFlow{From: tc.CurrentIntent.Type, To: candidates[i].Type}]
		}
		if len(history) == 0 && candidates[i].Type == IntentGeneralGreeting {
			boost += firstContactGreetingBonus
		}
		boost += boosts[candidates[i].Type]

		candidates[i].Confidence = math.Min(1.0, candidates[i].Confidence+boost)
	}
}

func (c *Classifier) urgencyLevel(normalized string, entities []Entity) UrgencyLevel {
	for _, e := range entities {
		if e.Type == EntityUrgencyLevel {
			return UrgencyLevel(e.Value)
		}
	}
	switch {
	case strings.Contains(normalized, "urgente") || strings.Contains(normalized, "emergencia"):
		return UrgencyHigh
	case strings.Contains(normalized, "rapido") || strings.Contains(normalized, "logo"):
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func (c *Classifier) sentiment(normalized string) Sentiment {
	pos, neg := 0, 0
	for _, w := range c.positive {
		if strings.Contains(normalized, w) {
			pos++
		}
	}
	for _, w := range c.negative {
		if strings.Contains(normalized, w) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
