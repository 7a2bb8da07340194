package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxform/voxform/internal/script"
	"github.com/voxform/voxform/internal/store"
)

func invoiceScript(t *testing.T) script.Script {
	t.Helper()
	s, err := script.Default().Lookup(store.DocumentInvoice)
	require.NoError(t, err)
	return s
}

func TestInvoiceConversation(t *testing.T) {
	c := New(invoiceScript(t))

	q, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "invoice_number", q.ID)

	for i, text := range []string{"A1", "Acme", "100", "2024-01-01"} {
		set, done, err := c.Answer(text)
		require.NoError(t, err)
		if i < 3 {
			assert.False(t, done)
			assert.Nil(t, set)
			continue
		}
		require.True(t, done)
		assert.Equal(t, map[string]string{
			"invoice_number": "A1",
			"client_name":    "Acme",
			"total_amount":   "100",
			"issue_date":     "2024-01-01",
		}, set.Map())
	}

	_, ok = c.Current()
	assert.False(t, ok)

	_, _, err := c.Answer("extra")
	assert.ErrorIs(t, err, ErrCompleted)
	assert.True(t, c.Status().Completed)
}

func TestAnswerSetOrder(t *testing.T) {
	c := New(invoiceScript(t))
	var set AnswerSet
	for _, text := range []string{"A1", "Acme", "100", "2024-01-01"} {
		s, done, err := c.Answer(text)
		require.NoError(t, err)
		if done {
			set = s
		}
	}

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, `{"invoice_number":"A1","client_name":"Acme","total_amount":"100","issue_date":"2024-01-01"}`, string(data))
}

func TestResetDiscardsAnswers(t *testing.T) {
	c := New(invoiceScript(t))
	_, _, err := c.Answer("A1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Status().Index)

	client, err := script.Default().Lookup(store.DocumentClient)
	require.NoError(t, err)
	c.Reset(client)

	st := c.Status()
	assert.Equal(t, 0, st.Index)
	assert.Empty(t, st.Answers)
	assert.Equal(t, "name", st.Question.ID)
	assert.Equal(t, store.DocumentClient, c.Script().DocumentType)
}

func TestAnswerSetNeverPartial(t *testing.T) {
	c := New(invoiceScript(t))
	for i := 0; i < 3; i++ {
		set, done, err := c.Answer("x")
		require.NoError(t, err)
		assert.False(t, done)
		assert.Nil(t, set)
	}
	assert.Len(t, c.Status().Answers, 3)
	assert.False(t, c.Status().Completed)
}

func TestEmptyAnswerSetMarshals(t *testing.T) {
	data, err := json.Marshal(AnswerSet{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
