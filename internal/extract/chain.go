package extract

import "github.com/rs/zerolog/log"

// Strategy is one heuristic attempt at reading a field out of a page.
// It reports false when it found nothing.
type Strategy[T any] struct {
	Name string
	Fn   func(*Document) (T, bool)
}

// Chain tries its strategies in order and keeps the first valid result.
// When every strategy fails the field default is used, so a chain never
// fails the record as a whole.
type Chain[T any] struct {
	Field      string
	Strategies []Strategy[T]
	Valid      func(T) bool
	Default    func(*Document) T
}

// Outcome records which strategy produced a field value
type Outcome[T any] struct {
	Value     T
	Strategy  string
	Defaulted bool
}

// Run evaluates the chain against d.
func (c Chain[T]) Run(d *Document) Outcome[T] {
	for _, s := range c.Strategies {
		v, ok := s.Fn(d)
		if !ok {
			continue
		}
		if c.Valid != nil && !c.Valid(v) {
			continue
		}
		log.Trace().
			Str("field", c.Field).
			Str("strategy", s.Name).
			Str("url", d.URL).
			Msg("Field extracted")
		return Outcome[T]{Value: v, Strategy: s.Name}
	}

	var def T
	if c.Default != nil {
		def = c.Default(d)
	}
	log.Trace().
		Str("field", c.Field).
		Str("url", d.URL).
		Msg("Field fell back to default")
	return Outcome[T]{Value: def, Strategy: "default", Defaulted: true}
}

// Value is Run without the bookkeeping.
func (c Chain[T]) Value(d *Document) T {
	return c.Run(d).Value
}
