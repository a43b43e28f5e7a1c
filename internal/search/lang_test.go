package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanQuery(t *testing.T) {
	assert.Equal(t, "pourquoi le ciel est bleu", CleanQuery("  pourquoi le ciel est bleu ? "))
	assert.Equal(t, "cats", CleanQuery("cats?utm=1"))
	assert.Equal(t, "", CleanQuery("?only"))
}

func TestDetectLang(t *testing.T) {
	assert.Equal(t, "fr", DetectLang("les volcans"))
	assert.Equal(t, "fr", DetectLang("éléphant"))
	assert.Equal(t, "en", DetectLang("what are volcanoes"))
	assert.Equal(t, "", DetectLang("volcano"))
	assert.Equal(t, "", DetectLang("lesson"))
}
