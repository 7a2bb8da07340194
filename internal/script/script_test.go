package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxform/voxform/internal/store"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	assert.Equal(t, []store.DocumentType{store.DocumentInvoice, store.DocumentClient}, reg.Types())
	assert.NotEmpty(t, reg.CompletionPrompt())

	invoice, err := reg.Lookup(store.DocumentInvoice)
	require.NoError(t, err)
	require.Equal(t, 4, invoice.Len())
	ids := make([]string, 0, invoice.Len())
	for _, q := range invoice.Questions {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{"invoice_number", "client_name", "total_amount", "issue_date"}, ids)
	assert.Equal(t, TypeNumber, invoice.Questions[2].Type)
	assert.Equal(t, TypeDate, invoice.Questions[3].Type)

	client, err := reg.Lookup(store.DocumentClient)
	require.NoError(t, err)
	assert.Equal(t, 3, client.Len())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Default().Lookup("spaceship")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestLookupReturnsCopy(t *testing.T) {
	reg := Default()
	s, err := reg.Lookup(store.DocumentClient)
	require.NoError(t, err)
	s.Questions[0].Prompt = "changed"

	again, err := reg.Lookup(store.DocumentClient)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again.Questions[0].Prompt)
}

func TestLoadRejectsInvalidTables(t *testing.T) {
	tests := map[string]string{
		"unknown key": `
scripts:
  - document_type: x
    colour: red
    questions: [{id: a, prompt: p, type: text}]`,
		"no questions": `
scripts:
  - document_type: x
    questions: []`,
		"bad type": `
scripts:
  - document_type: x
    questions: [{id: a, prompt: p, type: boolean}]`,
		"duplicate id": `
scripts:
  - document_type: x
    questions: [{id: a, prompt: p, type: text}, {id: a, prompt: q, type: text}]`,
		"duplicate script": `
scripts:
  - document_type: x
    questions: [{id: a, prompt: p, type: text}]
  - document_type: x
    questions: [{id: b, prompt: p, type: text}]`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}
