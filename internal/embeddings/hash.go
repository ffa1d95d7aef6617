package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/kamusis/sentari/internal/vector"
)

// DefaultHashDim is the vector size of the hash provider.
const DefaultHashDim = 256

type hashProvider struct {
	dim int
}

// NewHash returns an offline provider based on signed feature hashing of
// lowercase word tokens. Texts sharing words get similar vectors; text with
// no words embeds to the zero vector, which never matches anything.
func NewHash(dim int) Provider {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &hashProvider{dim: dim}
}

func (p *hashProvider) ModelID() string {
	return fmt.Sprintf("hash:fnv1a-%d", p.dim)
}

func (p *hashProvider) Dim() int {
	return p.dim
}

func (p *hashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float32, p.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dim))
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	return vector.NormalizeL2(v), nil
}
