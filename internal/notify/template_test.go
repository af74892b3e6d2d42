package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	vars := map[string]string{
		"name":            "Eva Reyes",
		"evaluation_name": "Q1 2025 Performance Review",
	}
	got := Render("Hi {{name}}, {{evaluation_name}} is open.", vars)
	assert.Equal(t, "Hi Eva Reyes, Q1 2025 Performance Review is open.", got)
}

func TestRenderLeavesUnknownTokens(t *testing.T) {
	got := Render("Hi {{name}}, see {{no_such_token}}.", map[string]string{"name": "Eva"})
	assert.Equal(t, "Hi Eva, see {{no_such_token}}.", got)
}

func TestRenderNoVars(t *testing.T) {
	assert.Equal(t, "plain text", Render("plain text", nil))
}
