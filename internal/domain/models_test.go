package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArticleType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ArticleType
	}{
		{"exact clinical trial", "Clinical trial", ArticleTypeClinicalTrial},
		{"uppercase clinical trial", "CLINICAL TRIAL", ArticleTypeClinicalTrial},
		{"clinical trial embedded", "This is a Clinical Trial study", ArticleTypeClinicalTrial},
		{"extra whitespace", "clinical   trial", ArticleTypeClinicalTrial},
		{"translational", "Translational", ArticleTypeTranslational},
		{"translational embedded", "translational research", ArticleTypeTranslational},
		{"basic science", "Basic science", ArticleTypeBasicScience},
		{"basic science mixed case", "BASIC Science", ArticleTypeBasicScience},
		{"other", "Other", ArticleTypeOther},
		{"unrecognized", "review article", ArticleTypeOther},
		{"empty", "", ArticleTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeArticleType(tt.input))
		})
	}
}

func TestNormalizeArticleTypeClosedSet(t *testing.T) {
	// Whatever the model returns, the result must be one of the four types.
	inputs := []string{"", "random", "clinical", "trial", "Clinical trial (phase 3)", "basic", "BASIC SCIENCE!"}
	valid := ValidArticleTypes()

	for _, in := range inputs {
		got := NormalizeArticleType(in)
		assert.Contains(t, valid, got, "input %q produced unrecognized type %q", in, got)
	}
}

func TestArticleHasAbstract(t *testing.T) {
	a := &Article{Abstract: "BACKGROUND: something."}
	assert.True(t, a.HasAbstract())

	a.Abstract = ""
	assert.False(t, a.HasAbstract())

	a.Abstract = NoAbstractPlaceholder
	assert.False(t, a.HasAbstract())
}

func TestErrorUnwrapping(t *testing.T) {
	nf := NewNotFoundError("digest", "abc")
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.Contains(t, nf.Error(), "digest")

	ve := NewValidationError("recipientEmail", "invalid address")
	assert.True(t, errors.Is(ve, ErrInvalidInput))

	api := NewExternalAPIError("PubMed", 502, "bad gateway", nil)
	assert.True(t, errors.Is(api, ErrServiceUnavailable))

	api400 := NewExternalAPIError("Gemini", 400, "bad request", nil)
	assert.False(t, errors.Is(api400, ErrServiceUnavailable))

	wrapped := NewExternalAPIError("Polly", 0, "", ErrRateLimited)
	assert.True(t, errors.Is(wrapped, ErrRateLimited))
}
