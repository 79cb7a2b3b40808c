package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPaths(t *testing.T) {
	v := MustParse(`{"menu": {"start": "Start", "empty": {}}, "list": ["a", {"b": 1}], "none": []}`)

	assert.Equal(t, []string{
		"menu.start",
		"menu.empty",
		"list.0",
		"list.1.b",
		"none",
	}, KeyPaths(v))
}

func TestKeyPaths_ScalarRoot(t *testing.T) {
	assert.Empty(t, KeyPaths(String("x")))
	assert.Empty(t, KeyPaths(NewMapping()))
}

func TestCompareShapes(t *testing.T) {
	en := MustParse(`{"menu": {"start": "Start", "settings": "Settings"}, "title": "Covarnius"}`)
	de := MustParse(`{"menu": {"start": "Starten", "quit": "Beenden"}, "title": "Covarnius"}`)

	missing, extra := CompareShapes(en, de)
	assert.Equal(t, []string{"menu.settings"}, missing)
	assert.Equal(t, []string{"menu.quit"}, extra)

	missing, extra = CompareShapes(en, Clone(en))
	assert.Empty(t, missing)
	assert.Empty(t, extra)
}
