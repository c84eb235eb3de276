package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAlphaKeywordHeavy(t *testing.T) {
	assert.Equal(t, alphaKeyword, ClassifyAlpha(`find "exact phrase" please`))
	assert.Equal(t, alphaKeyword, ClassifyAlpha("error code 503 on retry"))
	assert.Equal(t, alphaKeyword, ClassifyAlpha("compare AWS Lambda EC2 Kubernetes pricing"))
}

func TestClassifyAlphaSemantic(t *testing.T) {
	alpha := ClassifyAlpha("what is the general sentiment people have about remote work today")
	assert.Equal(t, alphaSemantic, alpha)
}

func TestClassifyAlphaDefault(t *testing.T) {
	assert.Equal(t, alphaDefault, ClassifyAlpha("short query"))
	assert.Equal(t, alphaDefault, ClassifyAlpha(""))
}

func TestClassifyAlphaDeterministic(t *testing.T) {
	q := "what did the committee decide about quarterly planning"
	first := ClassifyAlpha(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyAlpha(q))
	}
}
