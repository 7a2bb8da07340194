// Package conversation walks a script one question at a time and collects
// the answers.
package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"

	"github.com/voxform/voxform/internal/script"
)

var ErrCompleted = errors.New("conversation already completed")

type Answer struct {
	QuestionID string
	Text       string
}

// AnswerSet keeps answers in script order.
type AnswerSet []Answer

// Map returns the answers keyed by question id.
func (a AnswerSet) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, ans := range a {
		m[ans.QuestionID] = ans.Text
	}
	return m
}

// MarshalJSON writes an object whose keys follow script order.
func (a AnswerSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ans := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ans.QuestionID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ans.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Status is a snapshot of the controller.
type Status struct {
	Completed bool
	Index     int
	Question  script.Question
	Answers   AnswerSet
}

// Controller is the awaiting-answer(i) / completed state machine. It is safe
// for concurrent use.
type Controller struct {
	mu        sync.Mutex
	script    script.Script
	index     int
	answers   AnswerSet
	completed bool
}

// New starts a controller at the first question. s must have at least one
// question.
func New(s script.Script) *Controller {
	c := &Controller{}
	c.Reset(s)
	return c
}

// Reset discards all answers and restarts at the first question of s.
func (c *Controller) Reset(s script.Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = s
	c.index = 0
	c.answers = make(AnswerSet, 0, s.Len())
	c.completed = false
}

func (c *Controller) Script() script.Script {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.script
}

// Current returns the question being asked; ok is false once completed.
func (c *Controller) Current() (q script.Question, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return script.Question{}, false
	}
	return c.script.Questions[c.index], true
}

// Answer binds text to the current question and advances. When the last
// question is answered it returns the complete answer set with done set;
// that happens exactly once per run.
func (c *Controller) Answer(text string) (set AnswerSet, done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return nil, false, ErrCompleted
	}

	q := c.script.Questions[c.index]
	c.answers = append(c.answers, Answer{QuestionID: q.ID, Text: text})

	if c.index < len(c.script.Questions)-1 {
		c.index++
		return nil, false, nil
	}

	c.completed = true
	return append(AnswerSet(nil), c.answers...), true, nil
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Completed: c.completed,
		Index:     c.index,
		Answers:   append(AnswerSet(nil), c.answers...),
	}
	if !c.completed {
		st.Question = c.script.Questions[c.index]
	}
	return st
}
