package shortlink

import (
	"crypto/rand"
	"math/big"
)

// 62 个字符：大小写字母 + 数字
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const DefaultSlugLength = 6 // 62^6 ≈ 568 亿

var alphabetSize = big.NewInt(int64(len(alphabet)))

// SlugGenerator 生成均匀分布的随机短码。
//
// 它不检查唯一性：调用方插入时依赖存储层唯一约束，冲突后重新生成。
type SlugGenerator struct {
	length int
}

func NewSlugGenerator(length int) *SlugGenerator {
	if length <= 0 {
		length = DefaultSlugLength
	}
	return &SlugGenerator{length: length}
}

// Generate returns a random slug. length <= 0 uses the generator's configured length.
func (g *SlugGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = g.length
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
