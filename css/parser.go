// Package css parses media conditions found in HTML "media" attributes.
package css

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses media query lists.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new media query parser.
func NewParser(log *zap.Logger) *Parser {
	return &Parser{log: log}
}

// ParseMediaList parses comma separated list of media queries.
func (p *Parser) ParseMediaList(s string) []MediaQuery {
	var (
		queries []MediaQuery
		current []css.Token
	)
	lexer := css.NewLexer(parse.NewInputString(s))
	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			break
		}
		if tt == css.CommaToken {
			queries = append(queries, p.parseMediaQueryFromTokens(current))
			current = nil
			continue
		}
		// data is only valid until next call
		current = append(current, css.Token{TokenType: tt, Data: append([]byte(nil), data...)})
	}
	if len(current) > 0 || len(queries) > 0 {
		queries = append(queries, p.parseMediaQueryFromTokens(current))
	}
	return queries
}

// ParseMedia returns first media query of the list.
func (p *Parser) ParseMedia(s string) MediaQuery {
	if list := p.ParseMediaList(s); len(list) > 0 {
		return list[0]
	}
	return MediaQuery{}
}

// parseMediaQueryFromTokens parses a single media query from CSS tokens.
// Format: [not] [type] [and] (feature[: value]) [and (feature[: value])]...
func (p *Parser) parseMediaQueryFromTokens(tokens []css.Token) MediaQuery {
	mq := MediaQuery{}

	// Build raw string for logging
	var rawParts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			rawParts = append(rawParts, string(t.Data))
		} else if len(rawParts) > 0 {
			rawParts = append(rawParts, " ")
		}
	}
	mq.Raw = strings.TrimSpace(strings.Join(rawParts, ""))

	depth := 0
	var feature []css.Token
	for _, t := range tokens {
		switch t.TokenType {
		case css.LeftParenthesisToken:
			depth++
			if depth == 1 {
				feature = feature[:0]
				continue
			}
		case css.RightParenthesisToken:
			depth--
			if depth == 0 {
				if f, ok := p.parseFeature(feature); ok {
					mq.Features = append(mq.Features, f)
				}
				continue
			}
		case css.IdentToken:
			if depth == 0 {
				switch ident := strings.ToLower(string(t.Data)); ident {
				case "not":
					mq.Negated = true
				case "and", "only":
				default:
					mq.Type = ident
				}
				continue
			}
		}
		if depth > 0 {
			feature = append(feature, t)
		}
	}
	return mq
}

func (p *Parser) parseFeature(tokens []css.Token) (MediaFeature, bool) {
	var parts []css.Token
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 || parts[0].TokenType != css.IdentToken {
		return MediaFeature{}, false
	}

	f := MediaFeature{Name: strings.ToLower(string(parts[0].Data))}
	if len(parts) == 1 {
		return f, true
	}
	if len(parts) != 3 || parts[1].TokenType != css.ColonToken {
		p.log.Debug("Unsupported media feature", zap.String("feature", f.Name))
		return MediaFeature{}, false
	}

	var unit string
	switch parts[2].TokenType {
	case css.DimensionToken:
		f.Value, unit = parseDimension(string(parts[2].Data))
	case css.NumberToken:
		f.Value, _ = strconv.ParseFloat(string(parts[2].Data), 64)
	default:
		p.log.Debug("Unsupported media feature value", zap.String("feature", f.Name), zap.ByteString("value", parts[2].Data))
		return MediaFeature{}, false
	}
	f.Value, f.Unit = normalize(f.Name, f.Value, unit)
	f.HasValue = true
	return f, true
}

// parseDimension extracts numeric value and unit from dimension token.
func parseDimension(s string) (float64, string) {
	// Find where number ends
	numEnd := 0
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			numEnd = i + 1
		} else {
			break
		}
	}

	if numEnd == 0 {
		return 0, ""
	}

	num, _ := strconv.ParseFloat(s[:numEnd], 64)
	unit := strings.ToLower(s[numEnd:])
	return num, unit
}
