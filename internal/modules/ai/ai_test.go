package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalModelJSONPlain(t *testing.T) {
	var d Draft
	err := unmarshalModelJSON(`{"title":"Cursor","summary":"An editor.","content":"## About\n\nText."}`, &d)
	require.NoError(t, err)
	assert.Equal(t, "Cursor", d.Title)
}

func TestUnmarshalModelJSONFenced(t *testing.T) {
	raw := "```json\n{\"title\":\"Fenced\",\"content\":\"body\"}\n```"
	var d Draft
	require.NoError(t, unmarshalModelJSON(raw, &d))
	assert.Equal(t, "Fenced", d.Title)
}

func TestUnmarshalModelJSONEmbeddedInProse(t *testing.T) {
	raw := "Here is the article you asked for:\n{\"title\":\"Buried\",\"content\":\"body\"}\nHope that helps!"
	var d Draft
	require.NoError(t, unmarshalModelJSON(raw, &d))
	assert.Equal(t, "Buried", d.Title)
}

func TestUnmarshalModelJSONGarbage(t *testing.T) {
	var d Draft
	assert.Error(t, unmarshalModelJSON("I cannot help with that.", &d))
}
