package origin

// Origin names the retrieval adapter that produced a hit.
type Origin string

// Origin constants.
const (
	// Lexical is the full-text adapter, including its substring fallback.
	Lexical Origin = "lexical"
	// Vector is the approximate nearest neighbour adapter.
	Vector Origin = "vector"
)

// IsValid checks if the origin is one of the supported values.
func (o Origin) IsValid() bool {
	return o == Lexical || o == Vector
}

// Precedence orders origins for fusion tie-breaks: lexical first.
func (o Origin) Precedence() int {
	switch o {
	case Lexical:
		return 0
	case Vector:
		return 1
	default:
		return 2
	}
}
